package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/hostlink/go-hostlink/mux"
)

type options struct {
	sendBufSize int
	recvBufSize int
	maxPacket   int
	interval    time.Duration
	budget      int
	logger      *zap.Logger
	detector    mux.SleepDetector
}

func defaultOptions() options {
	return options{
		sendBufSize: 64 << 10,
		recvBufSize: 64 << 10,
		maxPacket:   16 << 10,
		interval:    100 * time.Millisecond,
		budget:      64,
		logger:      zap.NewNop(),
		detector:    mux.DetectorFunc(func() bool { return false }),
	}
}

// Option configures a Link.
type Option func(*options)

// WithSendBufferSize sets the per-channel send buffer size.
func WithSendBufferSize(n int) Option {
	return func(o *options) {
		o.sendBufSize = n
	}
}

// WithReceiveBufferSize sets the per-channel receive buffer size.
func WithReceiveBufferSize(n int) Option {
	return func(o *options) {
		o.recvBufSize = n
	}
}

// WithMaxPacketSize caps the payload of a single Data packet.
func WithMaxPacketSize(n int) Option {
	return func(o *options) {
		o.maxPacket = n
	}
}

// WithMaintenanceInterval sets how often channel and mux state are
// refreshed.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// WithPacketBudget bounds how many control packets may be outstanding
// at once.
func WithPacketBudget(n int) Option {
	return func(o *options) {
		o.budget = n
	}
}

// WithLogger sets the pump's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSleepDetector sets the detector polled for the peer's
// sleep/wake state.
func WithSleepDetector(d mux.SleepDetector) Option {
	return func(o *options) {
		o.detector = d
	}
}

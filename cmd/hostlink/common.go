package main

import (
	"crypto/tls"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hostlink/go-hostlink/config"
	"github.com/hostlink/go-hostlink/transport"
)

// linkOptions translates the config's link section into transport
// options, leaving defaults in place for anything unset.
func linkOptions(cfg *config.Config, logger *zap.Logger) ([]transport.Option, error) {
	opts := []transport.Option{transport.WithLogger(logger)}
	if cfg.Link.SendBuffer > 0 {
		opts = append(opts, transport.WithSendBufferSize(cfg.Link.SendBuffer))
	}
	if cfg.Link.ReceiveBuffer > 0 {
		opts = append(opts, transport.WithReceiveBufferSize(cfg.Link.ReceiveBuffer))
	}
	if cfg.Link.MaxPacketSize > 0 {
		opts = append(opts, transport.WithMaxPacketSize(cfg.Link.MaxPacketSize))
	}
	if cfg.Link.PacketBudget > 0 {
		opts = append(opts, transport.WithPacketBudget(cfg.Link.PacketBudget))
	}
	interval, err := cfg.Link.Interval()
	if err != nil {
		return nil, err
	}
	if interval > 0 {
		opts = append(opts, transport.WithMaintenanceInterval(interval))
	}
	return opts, nil
}

func serverTLS(cfg *config.Config) (*tls.Config, error) {
	o, err := cfg.QUIC()
	if err != nil {
		return nil, err
	}
	if o.CertFile == "" || o.KeyFile == "" {
		return nil, errors.New("quic transport requires cert_file and key_file options")
	}
	cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
	if err != nil {
		return nil, errors.Wrap(err, "load certificate")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"hostlink-quic"},
	}, nil
}

func clientTLS(cfg *config.Config) (*tls.Config, error) {
	o, err := cfg.QUIC()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		InsecureSkipVerify: o.Insecure,
		NextProtos:         []string{"hostlink-quic"},
	}, nil
}

// pipe copies in both directions until one side closes.
func pipe(a, b io.ReadWriter) {
	done := make(chan struct{}, 2)
	go func() {
		io.Copy(a, b)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(b, a)
		done <- struct{}{}
	}()
	<-done
}

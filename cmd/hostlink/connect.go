package main

import (
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hostlink/go-hostlink/config"
	"github.com/hostlink/go-hostlink/transport"
)

// connect dials the server and exposes each forward's channel as a
// local TCP listener.
func connect(cfg *config.Config, logger *zap.Logger) error {
	opts, err := linkOptions(cfg, logger)
	if err != nil {
		return err
	}

	var link *transport.Link
	switch cfg.Transport {
	case "", "tcp":
		link, err = transport.DialTCP(cfg.Address, opts...)
	case "unix":
		link, err = transport.DialUnix(cfg.Address, opts...)
	case "ws":
		link, err = transport.DialWS(cfg.Address, opts...)
	case "quic":
		tlsConf, tlsErr := clientTLS(cfg)
		if tlsErr != nil {
			return tlsErr
		}
		link, err = transport.DialQUIC(cfg.Address, tlsConf, opts...)
	}
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer link.Close()

	if cfg.Link.Version > 0 {
		link.SetVersion(cfg.Link.Version)
	}

	logger.Info("connected",
		zap.String("transport", cfg.Transport),
		zap.String("address", cfg.Address))

	for _, fwd := range cfg.Forwards {
		stream, err := link.Open(fwd.Channel)
		if err != nil {
			return errors.Wrapf(err, "open channel %d", fwd.Channel)
		}
		go func(fwd config.Forward, stream *transport.Stream) {
			ln, err := net.Listen("tcp", fwd.Address)
			if err != nil {
				logger.Error("listen forward",
					zap.String("address", fwd.Address), zap.Error(err))
				return
			}
			defer ln.Close()
			logger.Info("forward ready",
				zap.Uint32("channel", uint32(fwd.Channel)),
				zap.String("local", fwd.Address))
			// A channel is one conversation; serve one local
			// connection at a time.
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				pipe(conn, stream)
				conn.Close()
			}
		}(fwd, stream)
	}

	link.Start()
	return link.Wait()
}

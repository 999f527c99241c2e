package main

import (
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hostlink/go-hostlink/config"
	"github.com/hostlink/go-hostlink/transport"
)

// serve accepts links and, for each configured forward, bridges the
// channel to its TCP target.
func serve(cfg *config.Config, logger *zap.Logger) error {
	opts, err := linkOptions(cfg, logger)
	if err != nil {
		return err
	}

	var ln transport.Listener
	switch cfg.Transport {
	case "", "tcp":
		ln, err = transport.ListenTCP(cfg.Address, opts...)
	case "unix":
		ln, err = transport.ListenUnix(cfg.Address, opts...)
	case "ws":
		ln, err = transport.ListenWS(cfg.Address, opts...)
	case "quic":
		tlsConf, tlsErr := serverTLS(cfg)
		if tlsErr != nil {
			return tlsErr
		}
		ln, err = transport.ListenQUIC(cfg.Address, tlsConf, opts...)
	}
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	defer ln.Close()

	logger.Info("listening",
		zap.String("transport", cfg.Transport),
		zap.String("address", cfg.Address))

	for {
		link, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "accept")
		}
		go serveLink(link, cfg, logger)
	}
}

func serveLink(link *transport.Link, cfg *config.Config, logger *zap.Logger) {
	defer link.Close()

	if cfg.Link.Version > 0 {
		link.SetVersion(cfg.Link.Version)
	}

	for _, fwd := range cfg.Forwards {
		stream, err := link.Open(fwd.Channel)
		if err != nil {
			logger.Error("open channel",
				zap.Uint32("channel", uint32(fwd.Channel)), zap.Error(err))
			return
		}
		go func(fwd config.Forward, stream *transport.Stream) {
			target, err := net.Dial("tcp", fwd.Address)
			if err != nil {
				logger.Error("dial forward target",
					zap.String("address", fwd.Address), zap.Error(err))
				return
			}
			defer target.Close()
			logger.Info("forwarding",
				zap.Uint32("channel", uint32(fwd.Channel)),
				zap.String("target", fwd.Address))
			pipe(stream, target)
		}(fwd, stream)
	}

	link.Start()
	err := link.Wait()
	logger.Info("link closed", zap.Error(err))
}

// Command hostlink runs a hostlink endpoint that forwards TCP
// connections over the channels of a single multiplexed link.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hostlink/go-hostlink/config"
)

func main() {
	cfgPath := flag.String("c", "hostlink.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch cfg.Mode {
	case "serve":
		err = serve(cfg, logger)
	case "connect":
		err = connect(cfg, logger)
	}
	if err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	return c.Build()
}

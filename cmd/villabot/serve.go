package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keepmind9/villabot/internal/core"
	"github.com/keepmind9/villabot/internal/logger"
	"github.com/keepmind9/villabot/internal/sink"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	amqpDialAttempts = 5
	amqpDialDelay    = time.Second
)

var (
	configFile string
	noPing     bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the villabot runtime",
		Long:  "Connect every configured bot, receive events and dispatch them to the built-in handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configFile)
		},
	}
)

func serve(parent context.Context, path string) error {
	config, err := core.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitLogger(loggerConfig(config)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"config_file": path,
		"log_level":   config.Logging.Level,
		"log_file":    config.Logging.File,
	}).Info("logger-initialized")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var handlers []core.EventHandler

	if config.AMQP.Enabled {
		pub, err := sink.DialWithRetry(ctx, sink.DialOptions{
			URL:      config.AMQP.URL,
			Exchange: config.AMQP.Exchange,
			Attempts: amqpDialAttempts,
			Delay:    amqpDialDelay,
		})
		if err != nil {
			return err
		}
		s := sink.New(pub, config.AMQP.RoutingKey)
		defer s.Close()
		handlers = append(handlers, s.Handle)
	}
	if !noPing {
		handlers = append(handlers, pingHandler)
	}

	manager := core.NewManager(config, chain(handlers...))

	errCh := make(chan error, 1)
	go func() {
		errCh <- manager.Run(ctx)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			logger.WithField("error", err).Error("manager-failed")
		}
	case <-ctx.Done():
		logger.Info("shutdown-signal-received")
	}

	if stopErr := manager.Stop(); stopErr != nil {
		logger.WithField("error", stopErr).Error("error-during-shutdown")
	}
	logger.Info("villabot-stopped")
	return err
}

func loggerConfig(config *core.Config) logger.Config {
	stdout := true
	if config.Logging.EnableStdout != nil {
		stdout = *config.Logging.EnableStdout
	}
	return logger.Config{
		Level:        config.Logging.Level,
		File:         config.Logging.File,
		MaxSize:      config.Logging.MaxSize,
		MaxBackups:   config.Logging.MaxBackups,
		MaxAge:       config.Logging.MaxAge,
		Compress:     config.Logging.Compress,
		EnableStdout: stdout,
	}
}

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
	serveCmd.Flags().BoolVar(&noPing, "no-ping", false, "Disable the built-in ping responder")
}

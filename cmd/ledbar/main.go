package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ledbar/internal/config"
	appLog "ledbar/internal/log"
)

const version = "0.3.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	renderOnly bool
	once       bool
	debug      bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		appLog.Sync()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags flagConfig

	rootCmd := &cobra.Command{
		Use:           "ledbar",
		Short:         "Workday progress bar on a WS2812 LED strip",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	rootCmd.Flags().StringVar(&flags.configPath, "config", "/etc/ledbar/config.yaml", "Path to config file")
	rootCmd.Flags().BoolVar(&flags.renderOnly, "render-only", false, "Log frames instead of driving the SPI strip")
	rootCmd.Flags().BoolVar(&flags.once, "once", false, "Render a single tick and exit")
	rootCmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	return rootCmd
}

func run(parent context.Context, flags flagConfig) error {
	appLog.Info("ledbar starting", "version", version)
	defer appLog.Sync()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return err
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		return err
	}

	if lvl, ok := appLog.ParseLevel(conf.LogLevel); ok {
		appLog.SetLevel(lvl)
	}
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"pixels", conf.Strip.Pixels,
		"reverse", conf.Strip.Reverse,
		"calendar", conf.Calendar.Enabled,
		"provider", conf.Calendar.Provider,
		"check_interval", conf.Calendar.CheckInterval,
		"derive_from_events", conf.Schedule.DeriveFromEvents,
		"ntp", conf.NTP.Enabled,
		"once", flags.once,
		"render_only", flags.renderOnly,
	)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	a, err := newApp(ctx, conf, flags)
	if err != nil {
		appLog.Error("startup failed", err)
		return err
	}
	defer a.close()

	if flags.once {
		if err := a.loop.Tick(ctx); err != nil {
			appLog.Error("tick failed", err)
			return err
		}
		appLog.Info("single tick done")
		return nil
	}

	if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	appLog.Info("ledbar exiting")
	return nil
}

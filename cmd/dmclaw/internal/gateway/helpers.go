package gateway

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tinyland-inc/dmclaw/cmd/dmclaw/internal"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
)

func gatewayCmd(debug, noSchedule bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	app, err := internal.NewApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Plugin.OnLoad()
	defer app.Plugin.OnUnload()

	names := app.Channels.Names()
	if len(names) > 0 {
		fmt.Printf("✓ Channels enabled: %s\n", names)
	} else {
		fmt.Println("⚠ Warning: No channels enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Channels.StartAll(ctx); err != nil {
		fmt.Printf("Error starting channels: %v\n", err)
	}

	go app.RunInbound(ctx)

	if cfg.Schedule.Enabled && !noSchedule {
		go func() {
			if err := app.Scheduler.Run(ctx); err != nil {
				logger.ErrorCF("scheduler", "Scheduler stopped", map[string]any{"error": err.Error()})
			}
		}()
		fmt.Printf("✓ Check-ins scheduled (%s)\n", cfg.Schedule.Cron)
	}

	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	app.Channels.StopAll(context.Background())
	fmt.Println("✓ Gateway stopped")

	return nil
}

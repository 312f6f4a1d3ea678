package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/geongi-im/yolo-traffic-monitor/internal/app"
	"github.com/geongi-im/yolo-traffic-monitor/internal/config"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/notify"
	"github.com/geongi-im/yolo-traffic-monitor/internal/service/scheduler"

	"github.com/akamensky/argparse"
	"github.com/coreos/go-systemd/daemon"
)

func main() {
	parser := argparse.NewParser("traffic-monitor", "Periodic vehicle counting on a live traffic camera, with a live annotated feed")
	envFile := parser.String("e", "env", &argparse.Options{Help: "dotenv file to load before reading the environment", Default: ".env"})
	once := parser.Flag("", "once", &argparse.Options{Help: "Run a single analysis cycle and exit", Default: false})
	noScheduler := parser.Flag("", "no-scheduler", &argparse.Options{Help: "Serve HTTP only, without periodic analysis", Default: false})
	noHTTP := parser.Flag("", "no-http", &argparse.Options{Help: "Run periodic analysis only, without the HTTP server", Default: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	if *noScheduler && *noHTTP && !*once {
		fmt.Println("--no-scheduler and --no-http together leave nothing to run")
		os.Exit(1)
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("Failed to load %s: %v", *envFile, err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg)
	if err != nil {
		// best effort, the logger may not exist yet
		_ = notify.FromConfig(cfg).Notify(ctx, fmt.Sprintf("❌ Initialization failed: %v", err))
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer application.Close()

	if *once {
		result, err := application.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, scheduler.ErrNoFrames) {
				application.Logger().Warning("Cycle skipped: %v", err)
				return
			}
			application.Logger().Error("Cycle failed: %v", err)
			application.Close()
			os.Exit(1)
		}
		application.Logger().Info("Average %.1f vehicles over %d frames, artifact %q",
			result.AvgVehicleCount, len(result.FrameCounts), result.ArtifactPath)
		return
	}

	opts := app.Options{Scheduler: !*noScheduler, HTTP: !*noHTTP}
	ready := func() {
		daemon.SdNotify(false, daemon.SdNotifyReady)
	}
	if err := application.Run(ctx, opts, ready); err != nil {
		application.Logger().Error("Server stopped with error: %v", err)
		daemon.SdNotify(false, daemon.SdNotifyStopping)
		application.Close()
		os.Exit(1)
	}
	daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// Command battery-ems runs the battery energy-management controller: it
// loads the persisted configuration, starts the HTTP/WebSocket dashboard,
// and autostarts the configured control mode if requested.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hartman-ems/battery-ems/applog"
	"github.com/hartman-ems/battery-ems/control"
	"github.com/hartman-ems/battery-ems/httpapi"
	"github.com/hartman-ems/battery-ems/store"
	"github.com/hartman-ems/battery-ems/supervisor"
	"github.com/hartman-ems/battery-ems/telemetry"
)

func main() {
	var (
		configFile = flag.String("config", "config.json", "Configuration file path")
		addr       = flag.String("addr", ":8099", "HTTP listen address")
		staticDir  = flag.String("static", "www", "Static dashboard asset directory")
		logDir     = flag.String("logdir", "log", "Directory for day-rotated log files")
		rotateDays = flag.Int("log-rotate-days", 14, "Delete log files older than this many days")
	)
	flag.Parse()

	cfg, err := store.Load(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading configuration:", err)
		os.Exit(1)
	}

	writer := &applog.DailyWriter{Dir: *logDir, RotateDays: *rotateDays}
	logger := log.New(io.MultiWriter(os.Stdout, writer), "", log.LstdFlags)

	sup := supervisor.New(cfg, buildFactory(logger), logger)
	srv := httpapi.NewServer(sup, cfg, logger, httpapi.Options{StaticDir: *staticDir, LogDir: *logDir})

	if cfg.Snapshot().General.Autostart {
		if err := sup.Start(); err != nil {
			logger.Printf("main: autostart failed: %v", err)
		}
	}

	httpServer := &http.Server{Addr: *addr, Handler: srv.Handler()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("main: listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("main: http server error: %v", err)
		}
	}()

	select {
	case <-sigChan:
		logger.Printf("main: shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("main: http server shutdown: %v", err)
	}

	sup.Stop()
	logger.Printf("main: stopped")
}

// buildFactory translates the persisted config into the Deps and concrete
// Controller a supervisor.Supervisor needs for the config's current mode.
func buildFactory(logger *log.Logger) supervisor.Factory {
	return func(mode store.Mode, cfg store.Config) (control.Controller, error) {
		enabled := cfg.EnabledInverters()
		invs := make([]control.InverterEndpoint, 0, len(enabled))
		for _, inv := range enabled {
			invs = append(invs, control.InverterEndpoint{
				Name:           inv.Name,
				Host:           inv.Host,
				Port:           inv.Port,
				ConnectedPhase: telemetry.Phase(inv.ConnectedPhase),
			})
		}

		deps := control.Deps{
			Inverters: invs,
			DataManager: control.DataManagerEndpoint{
				Host:           cfg.DataManager.Host,
				Port:           cfg.DataManager.Port,
				MaxFuseCurrent: cfg.DataManager.MaxFuseCurrent,
			},
			LoopDelay: time.Duration(cfg.General.LoopDelaySeconds) * time.Second,
			Logger:    logger,
		}

		switch mode {
		case store.ModeIdle:
			return control.NewIdleController(deps), nil
		case store.ModeManual:
			return control.NewManualController(deps, control.ManualDirection(cfg.ModeManual.Direction), cfg.ModeManual.Amount), nil
		case store.ModeStatic:
			schedule := make([]control.ScheduleEntry, 0, len(cfg.ModeStatic.Schedule))
			for _, e := range cfg.ModeStatic.Schedule {
				tod, err := store.ParseTimeOfDay(e.TimeOfDay)
				if err != nil {
					return nil, fmt.Errorf("main: schedule entry: %w", err)
				}
				schedule = append(schedule, control.ScheduleEntry{
					TimeOfDay: tod,
					Direction: control.ManualDirection(e.Direction),
					Amount:    e.Amount,
				})
			}
			return control.NewStaticScheduleController(deps, schedule), nil
		case store.ModeDynamic:
			return control.NewDynamicController(deps), nil
		default:
			return nil, fmt.Errorf("main: unknown mode %q", mode)
		}
	}
}

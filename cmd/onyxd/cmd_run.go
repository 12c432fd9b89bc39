package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/onyx-network/onyx/pkg/audit"
	"github.com/onyx-network/onyx/pkg/config"
	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/intf"
	"github.com/onyx-network/onyx/pkg/util"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the adapter daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configFlag
			if path == "" {
				path = config.DefaultPath
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}
}

func runDaemon(cfg *config.Config) error {
	if err := cfg.ConfigureLogging(); err != nil {
		return err
	}

	if cfg.Audit.Path != "" {
		trail, err := audit.NewFileLogger(cfg.Audit.Path, audit.RotationConfig{
			MaxSize:    64 << 20,
			MaxBackups: 5,
		})
		if err != nil {
			return err
		}
		defer trail.Close()
		audit.SetDefaultLogger(trail)
	}

	drv := driver.New(driver.Options{
		RedisAddr:      cfg.Redis.Addr,
		VendorCommand:  cfg.Vendor.Command,
		VendorTimeout:  cfg.VendorTimeout(),
		PortMapPath:    cfg.Orchestrator.PortMapPath,
		RestartCmd:     cfg.Orchestrator.RestartCommand,
		InitialPortMap: cfg.DefaultPortMap(),
	})
	if err := drv.Connect(); err != nil {
		return fmt.Errorf("connecting to state store: %w", err)
	}
	defer drv.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	store := datastore.NewMemStore(datastore.InterfacesSchema())
	server, err := intf.NewServer(store, drv, intf.Options{
		PlatformDefaults: cfg.DefaultPortMap(),
		ReadyTimeout:     cfg.ReadyTimeout(),
		Metrics:          intf.NewMetrics(reg),
	})
	if err != nil {
		return err
	}
	server.RegisterSubsystem(intf.NewVLANSubsystem(store, drv))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}

	bridge := intf.NewNotificationBridge(server)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			util.Errorf("notification bridge stopped: %v", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				util.Errorf("metrics endpoint failed: %v", err)
			}
		}()
		util.Infof("metrics endpoint listening on %s", cfg.Metrics.Listen)
	}

	util.Infof("onyxd running, %d platform ports", len(cfg.Platform))
	<-ctx.Done()

	if metricsSrv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(sctx)
	}
	util.Infof("onyxd stopped")
	return nil
}

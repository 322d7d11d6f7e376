package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/micro-nova/imx415-go/internal/api"
	"github.com/micro-nova/imx415-go/internal/config"
	"github.com/micro-nova/imx415-go/internal/controller"
	"github.com/micro-nova/imx415-go/internal/events"
	"github.com/micro-nova/imx415-go/internal/metrics"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/micro-nova/imx415-go/internal/sensor"
	"github.com/micro-nova/imx415-go/internal/zeroconf"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		listen  string
		persist bool
		noMDNS  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Power the sensor and serve the HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.device(cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				d.HTTPAddr = listen
			}
			if noMDNS {
				d.MDNSName = ""
			}
			return serve(cmd.Context(), opts, d, persist)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default from config, \":8415\")")
	cmd.Flags().BoolVar(&persist, "persist", false, "save control changes back to the config file")
	cmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "do not advertise the API over mDNS")
	return cmd
}

func serve(parent context.Context, opts *rootOptions, d config.Device, persist bool) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bus := events.NewBus()
	go metrics.Run(ctx, bus)

	sess, release, err := opts.openSession(d, bus)
	if err != nil {
		return err
	}
	defer release()

	if err := bringUp(ctx, sess, d.Controls); err != nil {
		_ = sess.Close(context.Background())
		return err
	}

	// Config watch: presets edited on disk are re-applied.
	watcher := config.NewWatcher(opts.configPath)
	watcher.OnReload(func(nd config.Device) {
		if err := applyPresets(ctx, sess, nd.Controls); err != nil {
			slog.Warn("config: failed to apply presets", "err", err)
		}
	})
	if err := watcher.Start(); err != nil {
		slog.Warn("config: watch disabled", "path", opts.configPath, "err", err)
	} else {
		defer watcher.Stop()
	}

	var store config.Store
	if persist {
		store = config.NewFileStore(opts.configPath)
		go persistControls(ctx, bus, store, d)
	}

	if d.MDNSName != "" {
		svc := zeroconf.New(d.MDNSName, listenPort(d.HTTPAddr))
		_ = svc.UpdateTXT(zeroconf.TXT(sess.State()))
		go func() {
			if err := svc.Start(ctx); err != nil {
				slog.Warn("zeroconf failed", "err", err)
			}
		}()
		go advertise(ctx, svc, bus)
	}

	srv := newHTTPServer(ctx, d.HTTPAddr, api.NewRouter(sess, bus, metrics.Handler()))
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("imx415 listening", "addr", d.HTTPAddr, "mock", opts.mock, "config", opts.configPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Warn("systemd notify failed", "err", err)
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err = <-serveErr:
		slog.Error("server error", "err", err)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	// Ends open event streams so Shutdown does not wait on them.
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutCancel()
	if err := sess.Close(shutCtx); err != nil {
		slog.Warn("sensor: close failed", "err", err)
	}
	if store != nil {
		if err := store.Flush(); err != nil {
			slog.Warn("failed to flush config", "err", err)
		}
	}
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}
	slog.Info("shutdown complete")
	return err
}

// newHTTPServer returns the API server. Every request context derives from
// ctx, so cancelling ctx ends long-lived event streams.
func newHTTPServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		BaseContext:  func(net.Listener) context.Context { return ctx },
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}
}

// bringUp powers the sensor, checks its identity, selects the default mode
// and applies the start-up presets.
func bringUp(ctx context.Context, sess *controller.Session, presets map[string]int64) error {
	if err := sess.PowerOn(ctx); err != nil {
		return err
	}
	if err := sess.Identify(ctx); err != nil {
		return err
	}
	if err := sess.SelectMode(sensor.Default()); err != nil {
		return err
	}
	return applyPresets(ctx, sess, presets)
}

// applyPresets sets the preset controls that differ from the session's
// current values, in presentation order and under one group hold. A
// rejected preset is logged and skipped.
func applyPresets(ctx context.Context, sess *controller.Session, presets map[string]int64) error {
	if len(presets) == 0 {
		return nil
	}
	current := make(map[models.ControlID]int64, len(models.ControlIDs))
	for _, c := range sess.Controls() {
		current[c.ID] = c.Value
	}
	return sess.WithGroupHold(ctx, func(tx *controller.Tx) error {
		for _, id := range models.ControlIDs {
			v, ok := presets[string(id)]
			if !ok || current[id] == v {
				continue
			}
			if err := tx.SetControl(id, v); err != nil {
				slog.Warn("sensor: preset rejected", "control", id, "value", v, "err", err)
				continue
			}
			slog.Info("sensor: preset applied", "control", id, "value", v)
		}
		return nil
	})
}

// persistControls records writable control changes as presets in store.
func persistControls(ctx context.Context, bus *events.Bus, store config.Store, d config.Device) {
	const subID = "persist"
	ch := bus.Subscribe(subID)
	defer bus.Unsubscribe(subID)

	presets := make(map[string]int64, len(d.Controls))
	for k, v := range d.Controls {
		presets[k] = v
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Kind != models.EventControl {
				continue
			}
			c, found := ev.State.Control(ev.Control)
			if !found || c.ReadOnly {
				continue
			}
			if v, ok := presets[string(c.ID)]; ok && v == c.Value {
				continue
			}
			presets[string(c.ID)] = c.Value
			d.Controls = presets
			if err := store.Save(d); err != nil {
				slog.Warn("config: failed to save presets", "err", err)
			}
		}
	}
}

// advertise refreshes the mDNS TXT records when the sensor mode changes.
func advertise(ctx context.Context, svc *zeroconf.Service, bus *events.Bus) {
	const subID = "zeroconf"
	ch := bus.Subscribe(subID)
	defer bus.Unsubscribe(subID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.Kind != models.EventMode {
				continue
			}
			if err := svc.UpdateTXT(zeroconf.TXT(ev.State)); err != nil {
				slog.Warn("zeroconf: TXT update failed", "err", err)
			}
		}
	}
}

// listenPort extracts the port from an HTTP listen address, defaulting to
// 80.
func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 80
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 80
	}
	return port
}

// Package metrics exports sensor register traffic and session state as
// Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/micro-nova/imx415-go/internal/events"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imx415",
		Subsystem: "i2c",
		Name:      "transactions_total",
		Help:      "Register transactions by operation and result",
	}, []string{"op", "result"})

	controlUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imx415",
		Subsystem: "sensor",
		Name:      "control_updates_total",
		Help:      "Control value changes",
	}, []string{"control"})

	controlValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "imx415",
		Subsystem: "sensor",
		Name:      "control_value",
		Help:      "Current control value",
	}, []string{"control"})

	streaming = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imx415",
		Subsystem: "sensor",
		Name:      "streaming",
		Help:      "1 while the sensor is streaming",
	})

	powered = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imx415",
		Subsystem: "sensor",
		Name:      "powered",
		Help:      "1 while the sensor is powered",
	})

	frameLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "imx415",
		Subsystem: "sensor",
		Name:      "vts_lines",
		Help:      "Current vertical total size in lines",
	})
)

// ObserveRegister counts one register transaction. It matches
// hardware.Observer and is installed with hardware.WithObserver.
func ObserveRegister(op string, _ hardware.Register, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	registerOps.WithLabelValues(op, result).Inc()
}

// Record updates the session gauges from an event.
func Record(ev models.Event) {
	if ev.Kind == models.EventControl && ev.Control != "" {
		controlUpdates.WithLabelValues(string(ev.Control)).Inc()
	}
	streaming.Set(boolGauge(ev.State.Streaming))
	powered.Set(boolGauge(ev.State.Powered))
	frameLength.Set(float64(ev.State.VTS))
	for _, c := range ev.State.Controls {
		controlValue.WithLabelValues(string(c.ID)).Set(float64(c.Value))
	}
}

// Run records every event from bus until ctx is done.
func Run(ctx context.Context, bus *events.Bus) {
	const id = "metrics"
	ch := bus.Subscribe(id)
	defer bus.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			Record(ev)
		}
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

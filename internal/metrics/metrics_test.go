package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/micro-nova/imx415-go/internal/events"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRegister(t *testing.T) {
	ok := testutil.ToFloat64(registerOps.WithLabelValues("write", "ok"))
	bad := testutil.ToFloat64(registerOps.WithLabelValues("read", "error"))

	ObserveRegister("write", 0x3000, nil)
	ObserveRegister("read", 0x311A, errors.New("nack"))

	if got := testutil.ToFloat64(registerOps.WithLabelValues("write", "ok")); got != ok+1 {
		t.Errorf("write ok = %v, want %v", got, ok+1)
	}
	if got := testutil.ToFloat64(registerOps.WithLabelValues("read", "error")); got != bad+1 {
		t.Errorf("read error = %v, want %v", got, bad+1)
	}
}

func TestRecord(t *testing.T) {
	before := testutil.ToFloat64(controlUpdates.WithLabelValues("exposure"))
	Record(models.Event{
		Kind:    models.EventControl,
		Control: models.CtrlExposure,
		State: models.State{
			VTS:       2300,
			Powered:   true,
			Streaming: true,
			Controls:  []models.ControlInfo{{ID: models.CtrlExposure, Value: 1000}},
		},
	})
	if got := testutil.ToFloat64(controlUpdates.WithLabelValues("exposure")); got != before+1 {
		t.Errorf("control updates = %v, want %v", got, before+1)
	}
	if testutil.ToFloat64(streaming) != 1 || testutil.ToFloat64(powered) != 1 {
		t.Error("state gauges not set")
	}
	if testutil.ToFloat64(frameLength) != 2300 {
		t.Error("vts gauge not set")
	}
	if testutil.ToFloat64(controlValue.WithLabelValues("exposure")) != 1000 {
		t.Error("control value gauge not set")
	}
}

func TestRunFollowsBus(t *testing.T) {
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, bus)
		close(done)
	}()
	deadline := time.Now().Add(time.Second)
	for bus.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish(models.Event{Kind: models.EventPower, State: models.State{VTS: 4000}})
	for testutil.ToFloat64(frameLength) != 4000 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if testutil.ToFloat64(frameLength) != 4000 {
		t.Error("event not recorded")
	}
	cancel()
	<-done
	if bus.SubscriberCount() != 0 {
		t.Error("Run left its subscription")
	}
}

func TestHandler(t *testing.T) {
	ObserveRegister("write", 0x3000, nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "imx415_i2c_transactions_total") {
		t.Error("register counter missing from scrape")
	}
}

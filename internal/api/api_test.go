package api_test

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/micro-nova/imx415-go/internal/api"
	"github.com/micro-nova/imx415-go/internal/controller"
	"github.com/micro-nova/imx415-go/internal/events"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/metrics"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/micro-nova/imx415-go/internal/sensor"
)

type testServer struct {
	*httptest.Server
	mock *hardware.Mock
}

// newTestServer spins up a full router over a mock sensor.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mock := hardware.NewMock()
	bus := events.NewBus()
	port := hardware.NewPort(mock, hardware.WithObserver(metrics.ObserveRegister))
	sess, err := controller.New(
		controller.Config{Lanes: 4, XClk: hardware.XClk37M},
		controller.Hardware{Regs: port},
		bus,
		controller.WithSleep(func(time.Duration) {}),
	)
	if err != nil {
		t.Fatalf("controller.New: %v", err)
	}
	srv := httptest.NewServer(api.NewRouter(sess, bus, metrics.Handler()))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, mock: mock}
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *testServer, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

// requireError checks status and error code of a failed request.
func requireError(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	requireStatus(t, resp, status)
	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &body)
	if body.Error != code {
		t.Errorf("error code = %q, want %q", body.Error, code)
	}
}

func powerOn(t *testing.T, srv *testServer) {
	t.Helper()
	resp := do(t, srv, "POST", "/api/power/on", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

// --- Tests ---

func TestGetState(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, "GET", "/api", "")
	requireStatus(t, resp, http.StatusOK)

	var st models.State
	decodeJSON(t, resp, &st)
	if st.Mode.Width != 3864 || st.Lanes != 4 || st.PixelRate != 712800000 {
		t.Errorf("state %+v", st)
	}
	if st.Powered || st.Streaming {
		t.Error("fresh session powered or streaming")
	}
}

func TestModes(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, "GET", "/api/modes", "")
	requireStatus(t, resp, http.StatusOK)
	var modes []models.ModeInfo
	decodeJSON(t, resp, &modes)
	if len(modes) != len(sensor.Modes()) || modes[0].Code != sensor.FormatSGBRG10 {
		t.Errorf("modes %+v", modes)
	}

	resp = do(t, srv, "PUT", "/api/mode", `{"width":1920,"height":1080,"try":true}`)
	requireStatus(t, resp, http.StatusOK)
	var info models.ModeInfo
	decodeJSON(t, resp, &info)
	if info.Width != 3864 {
		t.Errorf("try mode width %d", info.Width)
	}

	resp = do(t, srv, "PUT", "/api/mode", `{"width":3864,"height":2192}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, srv, "PUT", "/api/mode", `{bad`)
	requireError(t, resp, http.StatusBadRequest, models.CodeBadRequest)
}

func TestSelection(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, "GET", "/api/selection/crop_bounds", "")
	requireStatus(t, resp, http.StatusOK)
	var rect sensor.Rect
	decodeJSON(t, resp, &rect)
	if rect.Width != 3864 || rect.Height != 2192 {
		t.Errorf("rect %+v", rect)
	}

	resp = do(t, srv, "GET", "/api/selection/compose", "")
	requireError(t, resp, http.StatusBadRequest, models.CodeBadRequest)
}

func TestControls(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/controls", "")
	requireStatus(t, resp, http.StatusOK)
	var ctrls []models.ControlInfo
	decodeJSON(t, resp, &ctrls)
	if len(ctrls) != len(models.ControlIDs) {
		t.Errorf("%d controls", len(ctrls))
	}

	resp = do(t, srv, "PATCH", "/api/controls/exposure", `{"value":1000}`)
	requireStatus(t, resp, http.StatusOK)
	var c models.ControlInfo
	decodeJSON(t, resp, &c)
	if c.Value != 1000 {
		t.Errorf("exposure %d", c.Value)
	}

	resp = do(t, srv, "PATCH", "/api/controls/exposure", `{"value":5000}`)
	requireError(t, resp, http.StatusBadRequest, models.CodeOutOfRange)

	resp = do(t, srv, "PATCH", "/api/controls/pixel_rate", `{"value":1}`)
	requireError(t, resp, http.StatusBadRequest, models.CodeReadOnly)

	resp = do(t, srv, "GET", "/api/controls/brightness", "")
	requireError(t, resp, http.StatusNotFound, models.CodeNotFound)

	resp = do(t, srv, "PATCH", "/api/controls/exposure", `{}`)
	requireError(t, resp, http.StatusBadRequest, models.CodeBadRequest)
}

func TestBulkControlsUseGroupHold(t *testing.T) {
	srv := newTestServer(t)
	powerOn(t, srv)
	srv.mock.ResetLog()

	// exposure 3000 only fits after vblank grows, so order matters.
	resp := do(t, srv, "PATCH", "/api/controls", `{"exposure":3000,"vertical_blanking":1000,"analogue_gain":16}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	w := srv.mock.Writes()
	if w[0].Reg != hardware.RegHold || w[0].Val != hardware.HoldStart {
		t.Errorf("first write %+v, want hold start", w[0])
	}
	if last := w[len(w)-1]; last.Reg != hardware.RegHold || last.Val != hardware.HoldEnd {
		t.Errorf("last write %+v, want hold end", last)
	}

	resp = do(t, srv, "PATCH", "/api/controls", `{"brightness":1}`)
	requireError(t, resp, http.StatusNotFound, models.CodeNotFound)
}

func TestBulkControlsRejectedBatchChangesNothing(t *testing.T) {
	srv := newTestServer(t)
	powerOn(t, srv)
	srv.mock.ResetLog()

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"exposure beyond new vblank", `{"vertical_blanking":1000,"exposure":999999}`, http.StatusBadRequest, models.CodeOutOfRange},
		{"vblank out of range", `{"vertical_blanking":1,"analogue_gain":16}`, http.StatusBadRequest, models.CodeOutOfRange},
		{"read-only in batch", `{"analogue_gain":16,"pixel_rate":1}`, http.StatusBadRequest, models.CodeReadOnly},
		{"bad flip", `{"vertical_blanking":500,"vertical_flip":2}`, http.StatusBadRequest, models.CodeOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, "PATCH", "/api/controls", tt.body)
			requireError(t, resp, tt.status, tt.code)

			for id, want := range map[string]int64{
				string(models.CtrlVBlank):     108,
				string(models.CtrlExposure):   2292,
				string(models.CtrlAnalogGain): 0,
				string(models.CtrlVFlip):      0,
			} {
				var c models.ControlInfo
				resp = do(t, srv, "GET", "/api/controls/"+id, "")
				requireStatus(t, resp, http.StatusOK)
				decodeJSON(t, resp, &c)
				if c.Value != want {
					t.Errorf("%s = %d after rejected batch, want %d", id, c.Value, want)
				}
			}
			if w := srv.mock.Writes(); len(w) != 0 {
				t.Errorf("rejected batch wrote %d registers: %+v", len(w), w)
			}
		})
	}
}

func TestStreamLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "POST", "/api/stream/on", "")
	requireError(t, resp, http.StatusServiceUnavailable, models.CodePower)

	powerOn(t, srv)

	resp = do(t, srv, "POST", "/api/identify", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = do(t, srv, "POST", "/api/stream/on", "")
	requireStatus(t, resp, http.StatusOK)
	var st models.State
	decodeJSON(t, resp, &st)
	if !st.Streaming {
		t.Error("not streaming")
	}

	resp = do(t, srv, "POST", "/api/stream/sideways", "")
	requireError(t, resp, http.StatusBadRequest, models.CodeBadRequest)

	resp = do(t, srv, "POST", "/api/power/off", "")
	requireStatus(t, resp, http.StatusOK)
	decodeJSON(t, resp, &st)
	if st.Powered || st.Streaming {
		t.Error("still powered after power off")
	}
}

func TestIdentifyMismatch(t *testing.T) {
	srv := newTestServer(t)
	srv.mock.OverrideRead(hardware.RegChipID, 0x42)
	powerOn(t, srv)
	resp := do(t, srv, "POST", "/api/identify", "")
	requireError(t, resp, http.StatusBadGateway, models.CodeIdentityMismatch)
}

func TestRegisters(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, "GET", "/api/registers/0x311a", "")
	requireError(t, resp, http.StatusServiceUnavailable, models.CodePower)

	powerOn(t, srv)

	resp = do(t, srv, "GET", "/api/registers/0x311a", "")
	requireStatus(t, resp, http.StatusOK)
	var rv struct {
		Addr  string `json:"addr"`
		Value uint32 `json:"value"`
	}
	decodeJSON(t, resp, &rv)
	if rv.Value != 0xE0 || rv.Addr != "0x311a" {
		t.Errorf("register %+v", rv)
	}

	resp = do(t, srv, "PUT", "/api/registers/0x3024", `{"width":3,"value":657660}`)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if srv.mock.GetReg(0x3024) != 0x0A || srv.mock.GetReg(0x3026) != 0xFC {
		t.Error("register write not applied big-endian")
	}

	resp = do(t, srv, "GET", "/api/registers/zzz", "")
	requireError(t, resp, http.StatusBadRequest, models.CodeBadRequest)

	resp = do(t, srv, "GET", "/api/registers/0x3000?width=9", "")
	requireError(t, resp, http.StatusBadRequest, models.CodeBadRequest)

	srv.mock.FailAt(0x3000, true)
	resp = do(t, srv, "GET", "/api/registers/0x3000", "")
	requireError(t, resp, http.StatusBadGateway, models.CodeIO)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	powerOn(t, srv)
	resp := do(t, srv, "GET", "/metrics", "")
	requireStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "imx415_i2c_transactions_total") {
		t.Error("register metrics missing")
	}
}

func TestSSESnapshotAndEvents(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, "GET", "/api/subscribe", "")
	requireStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()

	events := make(chan models.Event, 4)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 64*1024), 1<<20)
		for sc.Scan() {
			line := sc.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev models.Event
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				events <- ev
			}
		}
	}()

	next := func() models.Event {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for SSE event")
		}
		return models.Event{}
	}

	if ev := next(); ev.Kind != models.EventSnapshot {
		t.Errorf("first event %s, want snapshot", ev.Kind)
	}

	resp2 := do(t, srv, "PATCH", "/api/controls/analogue_gain", `{"value":64}`)
	requireStatus(t, resp2, http.StatusOK)
	resp2.Body.Close()

	ev := next()
	if ev.Kind != models.EventControl || ev.Control != models.CtrlAnalogGain {
		t.Errorf("event %s/%s", ev.Kind, ev.Control)
	}
	if ev.Seq == 0 {
		t.Error("event without sequence number")
	}
}

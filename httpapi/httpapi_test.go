package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hartman-ems/battery-ems/control"
	"github.com/hartman-ems/battery-ems/store"
	"github.com/hartman-ems/battery-ems/supervisor"
)

type stubController struct {
	stop chan struct{}
}

func (c *stubController) Mode() control.Mode { return control.ModeIdle }
func (c *stubController) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-c.stop:
	}
	return nil
}
func (c *stubController) Stop() {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
}
func (c *stubController) Status() control.ControllerStatus {
	return control.ControllerStatus{Running: true, Mode: control.ModeIdle}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("store.Load: %v", err)
	}
	factory := func(mode store.Mode, cfg store.Config) (control.Controller, error) {
		return &stubController{stop: make(chan struct{})}, nil
	}
	sup := supervisor.New(s, factory, nil)
	return NewServer(sup, s, nil, Options{LogDir: t.TempDir()})
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q, want ok", body.Status)
	}
}

func TestRunEndpointStartsController(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]bool{"running": true})
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/", nil)
	w2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w2, req2)
	var status statusResponse
	json.Unmarshal(w2.Body.Bytes(), &status)
	if !status.Running {
		t.Errorf("expected running=true after POST /api/run")
	}
}

func TestRunEndpointRejectsMissingField(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConfigGeneralRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	payload := store.GeneralConfig{Mode: store.ModeManual, LoopDelaySeconds: 20}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/config/general", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body=%s", w.Code, w.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/config/general", nil)
	getW := httptest.NewRecorder()
	srv.Handler().ServeHTTP(getW, getReq)

	var got store.GeneralConfig
	if err := json.Unmarshal(getW.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != payload {
		t.Errorf("GET after POST = %+v, want %+v", got, payload)
	}
}

func TestConfigGeneralRejectsInvalidMode(t *testing.T) {
	srv := newTestServer(t)
	body := []byte(`{"mode":"BOGUS","loop_delay_seconds":10}`)
	req := httptest.NewRequest(http.MethodPost, "/config/general", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestLogEndpointNotPresent(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"date": "2000-01-01"})
	req := httptest.NewRequest(http.MethodPost, "/api/log", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "logfile not present" {
		t.Errorf("body = %q, want 'logfile not present'", w.Body.String())
	}
}

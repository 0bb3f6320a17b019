package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/hartman-ems/battery-ems/applog"
	"github.com/hartman-ems/battery-ems/store"
	"github.com/hartman-ems/battery-ems/telemetry"
)

// statusResponse mirrors GET /api/'s documented shape.
type statusResponse struct {
	Status       string           `json:"status"`
	Running      bool             `json:"running"`
	RunningStart *int64           `json:"running_start"`
	Mode         store.Mode       `json:"mode"`
	Stats        any              `json:"stats"`
	Sun          *telemetry.SunInfo `json:"sun,omitempty"`
}

func (s *Server) statusJSON() statusResponse {
	st := s.sup.Status()

	resp := statusResponse{Status: "ok", Running: st.Running, Mode: st.Mode}
	if !st.RunningStart.IsZero() {
		ts := st.RunningStart.Unix()
		resp.RunningStart = &ts
	}
	if st.Stats != nil {
		resp.Stats = st.Stats
	}

	general := s.cfg.Snapshot().General
	if general.Latitude != 0 || general.Longitude != 0 {
		sun := telemetry.CurrentSunInfo(general.Latitude, general.Longitude)
		resp.Sun = &sun
	}
	return resp
}

func (s *Server) handleStatusRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.statusJSON())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Running *bool `json:"running"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Running == nil {
		writeError(w, errInvalidBody("running"))
		return
	}
	if err := s.sup.SetRunning(*body.Running); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var body struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Date == "" {
		writeError(w, errInvalidBody("date"))
		return
	}
	text, ok := applog.Read(s.logDir, body.Date)
	if !ok {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("logfile not present"))
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(text))
}

func (s *Server) handleConfigAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Snapshot())
}

func (s *Server) handleGeneral(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Snapshot().General)
	case http.MethodPost:
		var g store.GeneralConfig
		if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
			writeError(w, err)
			return
		}
		if err := s.cfg.SetGeneral(g); err != nil {
			writeError(w, err)
			return
		}
		if err := s.sup.ModeChanged(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleInverters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Snapshot().Inverters)
	case http.MethodPost:
		var invs []store.InverterConfig
		if err := json.NewDecoder(r.Body).Decode(&invs); err != nil {
			writeError(w, err)
			return
		}
		if err := s.cfg.SetInverters(invs); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleDataManager(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Snapshot().DataManager)
	case http.MethodPost:
		var dm store.DataManagerConfig
		if err := json.NewDecoder(r.Body).Decode(&dm); err != nil {
			writeError(w, err)
			return
		}
		if err := s.cfg.SetDataManager(dm); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleModeManual(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Snapshot().ModeManual)
	case http.MethodPost:
		var m store.ManualConfig
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			writeError(w, err)
			return
		}
		if err := s.cfg.SetManual(m); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleModeStatic(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Snapshot().ModeStatic)
	case http.MethodPost:
		var st store.StaticConfig
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			writeError(w, err)
			return
		}
		if err := s.cfg.SetStatic(st); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleModeDynamic(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Snapshot().ModeDynamic)
	case http.MethodPost:
		var d store.DynamicConfig
		if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
			writeError(w, err)
			return
		}
		if err := s.cfg.SetDynamic(d); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

type invalidBodyError struct{ field string }

func (e *invalidBodyError) Error() string { return "invalid or missing field: " + e.field }

func errInvalidBody(field string) error { return &invalidBodyError{field: field} }

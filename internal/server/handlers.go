package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/apkfleet/apkfleet"
	"github.com/apkfleet/apkfleet/pkg/adb"
)

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req apkfleet.JobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cfg, err := apkfleet.BuildJobConfig(req, s.cfg.LogDir)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// The run outlives this request: net/http cancels r.Context() once
	// the handler returns, which would kill every bridge call of the
	// background fleet. Keep the request's values, drop its cancellation.
	if err := s.orch.Start(context.WithoutCancel(r.Context()), cfg); err != nil {
		if errors.Is(err, apkfleet.ErrRunActive) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": true,
		"devices":  len(cfg.Devices),
		"log_file": cfg.LogPath,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.progress.Snapshot())
}

func (s *Server) handleDownloadLog(w http.ResponseWriter, r *http.Request) {
	snap := s.progress.Snapshot()
	if snap.LogFile == "" {
		writeError(w, http.StatusNotFound, errors.New("log file not found"))
		return
	}
	if _, err := os.Stat(snap.LogFile); err != nil {
		writeError(w, http.StatusNotFound, errors.New("log file not found"))
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(snap.LogFile))
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, snap.LogFile)
}

// diagRequest covers the diagnostic endpoints: a device list plus the
// bridge binary, and a date for the clock endpoint.
type diagRequest struct {
	Devices    string `json:"devices"`
	BridgePath string `json:"adb_path"`
	Date       string `json:"date"`
}

type diagResponse struct {
	Total   int                  `json:"total"`
	OK      int                  `json:"ok"`
	Results []apkfleet.DiagResult `json:"results"`
}

func (s *Server) decodeDiag(w http.ResponseWriter, r *http.Request) ([]string, adb.Runner, *diagRequest, bool) {
	var req diagRequest
	if !decodeJSON(w, r, &req) {
		return nil, nil, nil, false
	}
	devices := apkfleet.SplitDevices(req.Devices)
	if len(devices) == 0 {
		writeError(w, http.StatusBadRequest, apkfleet.ErrNoDevices)
		return nil, nil, nil, false
	}
	if _, err := os.Stat(req.BridgePath); err != nil {
		writeError(w, http.StatusBadRequest, apkfleet.ErrBridgeNotFound)
		return nil, nil, nil, false
	}
	return devices, adb.NewExecRunner(req.BridgePath), &req, true
}

func (s *Server) handleTestConnections(w http.ResponseWriter, r *http.Request) {
	devices, runner, _, ok := s.decodeDiag(w, r)
	if !ok {
		return
	}
	results, connected := apkfleet.TestConnections(r.Context(), runner, devices)
	writeJSON(w, http.StatusOK, diagResponse{Total: len(results), OK: connected, Results: results})
}

func (s *Server) handleRootStatus(w http.ResponseWriter, r *http.Request) {
	devices, runner, _, ok := s.decodeDiag(w, r)
	if !ok {
		return
	}
	conn := adb.NewManager(runner)
	results, rooted := apkfleet.CheckRootStatus(r.Context(), runner, conn, devices)
	writeJSON(w, http.StatusOK, diagResponse{Total: len(results), OK: rooted, Results: results})
}

func (s *Server) handleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	devices, runner, _, ok := s.decodeDiag(w, r)
	if !ok {
		return
	}
	conn := adb.NewManager(runner)
	results := apkfleet.CollectDeviceInfo(r.Context(), runner, conn, devices)
	writeJSON(w, http.StatusOK, diagResponse{Total: len(results), OK: countOK(results), Results: results})
}

func (s *Server) handleSetClock(w http.ResponseWriter, r *http.Request) {
	devices, runner, req, ok := s.decodeDiag(w, r)
	if !ok {
		return
	}
	target, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid date, expected YYYY-MM-DD"))
		return
	}
	conn := adb.NewManager(runner)
	results, set := apkfleet.SetFleetClock(r.Context(), runner, conn, devices, target)
	writeJSON(w, http.StatusOK, diagResponse{Total: len(results), OK: set, Results: results})
}

func countOK(results []apkfleet.DiagResult) int {
	n := 0
	for _, res := range results {
		if res.OK {
			n++
		}
	}
	return n
}

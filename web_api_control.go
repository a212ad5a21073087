package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ordaq/framering/control"
)

type controlRequest struct {
	Type       string  `json:"type"`
	ConfigName string  `json:"configName,omitempty"`
	TotalSteps *int    `json:"totalSteps,omitempty"`
	Config     *Config `json:"config,omitempty"`
}

// processControlRequest turns a control payload from HTTP or the websocket
// into a run-loop command. Reset resolves a preset name first, then an
// inline config; either way the result is validated before it is queued.
func (ws *WebServer) processControlRequest(req *controlRequest) (*control.Command, error) {
	var cmd control.Command
	switch req.Type {
	case "pause":
		cmd.Type = control.CommandPause
	case "resume":
		cmd.Type = control.CommandResume
	case "step":
		cmd.Type = control.CommandStep
	case "reset":
		cmd.Type = control.CommandReset
		cfg, err := ws.resolveResetConfig(req)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			cmd.ConfigOverride = cfg
		}
	default:
		return nil, fmt.Errorf("unknown command type %q", req.Type)
	}
	return &cmd, nil
}

func (ws *WebServer) resolveResetConfig(req *controlRequest) (*Config, error) {
	var cfg *Config
	switch {
	case req.ConfigName != "":
		cfg = GetConfigByName(req.ConfigName)
		if cfg == nil {
			return nil, fmt.Errorf("unknown config %q", req.ConfigName)
		}
	case req.Config != nil:
		cfg = req.Config
	default:
		return nil, nil
	}
	if req.TotalSteps != nil {
		if *req.TotalSteps <= 0 {
			return nil, errors.New("totalSteps must be positive")
		}
		cfg.TotalSteps = *req.TotalSteps
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (ws *WebServer) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		GetLogger().Debugf("Error reading request body: %v", err)
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	GetLogger().Debugf("Received /api/control request: Body=%s", string(bodyBytes))

	var req controlRequest
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		GetLogger().Debugf("Error decoding JSON: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cmd, err := ws.processControlRequest(&req)
	if err != nil {
		GetLogger().Debugf("Error processing control request: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !ws.queueCommand(*cmd) {
		GetLogger().Debugf("Command queue full, cannot accept command")
		http.Error(w, "Command queue full", http.StatusServiceUnavailable)
		return
	}

	GetLogger().Debugf("Command queued: Type=%v, HasConfig=%v", cmd.Type, cmd.ConfigOverride != nil)
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Command accepted"))
}

package main

import (
	"encoding/json"
	"net/http"
	"sort"
)

type arbiterSettings struct {
	Quantum    int `json:"quantum"`
	QuantumCap int `json:"quantumCap"`
}

type arbiterResponse struct {
	arbiterSettings
	Hold     int    `json:"hold"`
	Deficits []int  `json:"deficits"`
	Bypasses uint64 `json:"bypasses"`
}

// handleArbiter reads or retunes the grant weights. A PUT takes effect at
// the next replenish boundary; banked quantum above the new cap is clipped
// there, not retroactively.
func (ws *WebServer) handleArbiter(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ws.handleArbiterGet(w, r)
	case http.MethodPut:
		ws.handleArbiterPut(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ws *WebServer) handleArbiterGet(w http.ResponseWriter, r *http.Request) {
	if ws.merger == nil {
		http.Error(w, "Merger not available", http.StatusServiceUnavailable)
		return
	}
	cfg := ws.merger.Config()

	ws.mu.RLock()
	frame := ws.latestFrame
	ws.mu.RUnlock()

	response := arbiterResponse{
		arbiterSettings: arbiterSettings{
			Quantum:    cfg.Quantum,
			QuantumCap: cfg.QuantumCap,
		},
		Hold: -1,
	}
	if frame != nil {
		response.Hold = frame.Arbiter.Hold
		response.Deficits = frame.Arbiter.Quantum
		response.Bypasses = frame.Arbiter.Bypasses
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (ws *WebServer) handleArbiterPut(w http.ResponseWriter, r *http.Request) {
	if ws.merger == nil {
		http.Error(w, "Merger not available", http.StatusServiceUnavailable)
		return
	}

	var req arbiterSettings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantum <= 0 {
		http.Error(w, "quantum must be positive", http.StatusBadRequest)
		return
	}
	if req.QuantumCap < req.Quantum {
		http.Error(w, "quantumCap must be at least quantum", http.StatusBadRequest)
		return
	}

	ws.merger.ConfigureArbiter(req.Quantum, req.QuantumCap)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(req)
}

type pluginInfo struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Loaded      bool   `json:"loaded"`
}

// handlePlugins lists the registered hook plugins and which ones this run
// loaded.
func (ws *WebServer) handlePlugins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if ws.merger == nil {
		http.Error(w, "Merger not available", http.StatusServiceUnavailable)
		return
	}
	registry := ws.merger.PluginRegistry()
	if registry == nil {
		http.Error(w, "Plugin registry not available", http.StatusServiceUnavailable)
		return
	}

	loaded := make(map[string]bool)
	for _, name := range ws.merger.Config().Plugins {
		loaded[name] = true
	}

	names := registry.Names()
	plugins := make([]pluginInfo, 0, len(names))
	for _, name := range names {
		desc, ok := registry.Descriptor(name)
		if !ok {
			continue
		}
		plugins = append(plugins, pluginInfo{
			Name:        desc.Name,
			Category:    string(desc.Category),
			Description: desc.Description,
			Loaded:      loaded[desc.Name],
		})
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Name < plugins[j].Name
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(plugins); err != nil {
		http.Error(w, "Failed to encode plugins", http.StatusInternalServerError)
	}
}

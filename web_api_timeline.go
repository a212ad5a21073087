package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/plugins/trace"
)

// frameDetail is the full retained record of one presented frame. Words go
// out as hex strings; the marker bytes live in bits JSON numbers cannot
// carry exactly.
type frameDetail struct {
	Info   core.FrameInfo `json:"info"`
	Issues []string       `json:"issues,omitempty"`
	Words  []string       `json:"words"`
}

func (ws *WebServer) handleRecentFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if ws.merger == nil {
		http.Error(w, "Collector not available", http.StatusServiceUnavailable)
		return
	}
	records := ws.merger.Collector().Recent()

	if serialParam := r.URL.Query().Get("serial"); serialParam != "" {
		serial, err := strconv.ParseUint(serialParam, 10, 64)
		if err != nil {
			http.Error(w, "Invalid serial", http.StatusBadRequest)
			return
		}
		for i := range records {
			if records[i].Serial != serial {
				continue
			}
			detail := frameDetail{
				Info:   records[i].Info(),
				Issues: records[i].Issues,
				Words:  make([]string, len(records[i].Words)),
			}
			for j, word := range records[i].Words {
				detail.Words[j] = fmt.Sprintf("%016x", word)
			}
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(detail); err != nil {
				http.Error(w, "Failed to encode frame detail", http.StatusInternalServerError)
			}
			return
		}
		http.Error(w, "Frame not retained", http.StatusNotFound)
		return
	}

	infos := make([]core.FrameInfo, len(records))
	for i := range records {
		infos[i] = records[i].Info()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		http.Error(w, "Failed to encode frames", http.StatusInternalServerError)
	}
}

func (ws *WebServer) handleTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if ws.merger == nil || ws.merger.Tracer() == nil {
		http.Error(w, "Trace recorder not loaded", http.StatusServiceUnavailable)
		return
	}
	tracer := ws.merger.Tracer()

	var since uint64
	if sinceParam := r.URL.Query().Get("since"); sinceParam != "" {
		parsed, err := strconv.ParseUint(sinceParam, 10, 64)
		if err != nil {
			http.Error(w, "Invalid since sequence", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	response := struct {
		Events  []trace.Event `json:"events"`
		LastSeq uint64        `json:"lastSeq"`
	}{
		Events:  tracer.Events(since),
		LastSeq: tracer.LastSeq(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode trace", http.StatusInternalServerError)
	}
}

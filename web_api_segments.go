package main

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type segmentNode struct {
	ID           int    `json:"id"`
	Label        string `json:"label"`
	WordsWritten int    `json:"wordsWritten"`
	MetaPending  int    `json:"metaPending"`
	MetaComplete int    `json:"metaComplete"`
	Locked       bool   `json:"locked"`
	ReadSegment  bool   `json:"readSegment"`
	InWindow     bool   `json:"inWindow"`
	Active       bool   `json:"active"`
	HeadSerial   uint64 `json:"headSerial"`
}

type segmentLink struct {
	Source int    `json:"source"`
	Target int    `json:"target"`
	Kind   string `json:"kind"` // "trail" forward, "body" back-link
}

type segmentMap struct {
	Step         uint64        `json:"step"`
	SegmentWords int           `json:"segmentWords"`
	Segments     []segmentNode `json:"segments"`
	Links        []segmentLink `json:"links"`
}

// handleSegments serves the arena layout: per-segment occupancy and lock
// state plus the live spill links, shaped for a ring diagram.
func (ws *WebServer) handleSegments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ws.mu.RLock()
	frame := ws.latestFrame
	ws.mu.RUnlock()

	if frame == nil {
		http.Error(w, "No frame available", http.StatusNotFound)
		return
	}

	layout := segmentMap{
		Step:         frame.Step,
		SegmentWords: frame.SegmentWords,
		Segments:     make([]segmentNode, len(frame.Segments)),
	}
	for i, seg := range frame.Segments {
		layout.Segments[i] = segmentNode{
			ID:           seg.ID,
			Label:        fmt.Sprintf("segment %d", seg.ID),
			WordsWritten: seg.WordsWritten,
			MetaPending:  seg.MetaPending,
			MetaComplete: seg.MetaComplete,
			Locked:       seg.Locked,
			ReadSegment:  seg.ReadSegment,
			InWindow:     seg.InWindow,
			Active:       seg.ID == frame.Allocator.ActiveSegment,
			HeadSerial:   seg.HeadSerial,
		}
		if seg.TrailValid {
			layout.Links = append(layout.Links, segmentLink{
				Source: seg.ID,
				Target: seg.Trail,
				Kind:   "trail",
			})
		}
		if seg.BodyValid {
			layout.Links = append(layout.Links, segmentLink{
				Source: seg.ID,
				Target: seg.Body,
				Kind:   "body",
			})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(layout); err != nil {
		http.Error(w, "Failed to encode segment map", http.StatusInternalServerError)
	}
}

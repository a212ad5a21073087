package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/ordaq/framering/control"
)

// WebServer exposes the merger over HTTP: JSON endpoints for the live
// snapshot, stats and recent frames, a control endpoint feeding the run
// loop, a websocket pushing every published frame, and the Prometheus
// scrape handler.
type WebServer struct {
	mu          sync.RWMutex
	latestFrame *MergerFrame
	merger      *Merger
	hub         *wsHub
	commands    control.CommandQueue
	server      *http.Server
}

// NewWebServer creates a new web server instance. Start binds the listener.
func NewWebServer(addr string, m *Merger) *WebServer {
	ws := &WebServer{
		merger:   m,
		hub:      newHub(),
		commands: control.NewChannelQueue(DefaultCommandBuffer),
	}
	ws.server = &http.Server{
		Addr:    addr,
		Handler: NewRouter(ws),
	}
	return ws
}

func (ws *WebServer) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/frame", ws.handleFrame)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/configs", ws.handleConfigs)
	mux.HandleFunc("/api/control", ws.handleControl)
	mux.HandleFunc("/api/arbiter", ws.handleArbiter)
	mux.HandleFunc("/api/plugins", ws.handlePlugins)
	mux.HandleFunc("/api/frames", ws.handleRecentFrames)
	mux.HandleFunc("/api/trace", ws.handleTrace)
	mux.HandleFunc("/api/segments", ws.handleSegments)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.hub.handle(ws, w, r)
	})
	// Resolved per request so a reset pointing at a rebuilt metric
	// registry keeps scraping the live one.
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if ws.merger == nil {
			http.Error(w, "Metrics unavailable", http.StatusServiceUnavailable)
			return
		}
		ws.merger.MetricsHandler().ServeHTTP(w, r)
	})
	mux.Handle("/", http.FileServer(http.Dir("web/static")))
}

// Start starts the HTTP server in a goroutine.
func (ws *WebServer) Start() {
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			GetLogger().Errorf("Web server stopped: %v", err)
		}
	}()
}

// Stop shuts the listener down.
func (ws *WebServer) Stop(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	return ws.server.Shutdown(ctx)
}

// UpdateFrame caches the newest snapshot and fans it out to websocket
// clients.
func (ws *WebServer) UpdateFrame(frame *MergerFrame) {
	ws.mu.Lock()
	ws.latestFrame = frame
	ws.mu.Unlock()
	ws.hub.broadcastFrame(frame)
}

// NextCommand returns the next control command if available, non-blocking.
func (ws *WebServer) NextCommand() (control.Command, bool) {
	return ws.commands.TryDequeue()
}

// WaitCommand blocks until a command arrives or the context is cancelled.
func (ws *WebServer) WaitCommand(ctx context.Context) (control.Command, bool) {
	return ws.commands.Next(ctx)
}

func (ws *WebServer) queueCommand(cmd control.Command) bool {
	return ws.commands.Enqueue(cmd)
}

package main

import (
	"context"

	"github.com/ordaq/framering/control"
)

// WebVisualizer bridges the merger with the web server.
type WebVisualizer struct {
	headless bool
	server   *WebServer
}

// NewWebVisualizer creates the web visualizer and starts its server.
func NewWebVisualizer(m *Merger, addr string) *WebVisualizer {
	server := NewWebServer(addr, m)
	server.Start()
	GetLogger().Infof("Web interface listening at http://%s", addr)
	return &WebVisualizer{server: server}
}

// SetHeadless switches headless state.
func (w *WebVisualizer) SetHeadless(headless bool) {
	w.headless = headless
}

// IsHeadless returns whether the visualizer runs without UI.
func (w *WebVisualizer) IsHeadless() bool {
	return w.headless
}

// PublishFrame updates the server with the latest snapshot.
func (w *WebVisualizer) PublishFrame(frame any) {
	mf, ok := frame.(*MergerFrame)
	if !ok || w.server == nil {
		return
	}
	w.server.UpdateFrame(mf)
}

// NextCommand returns the next control command if available, non-blocking.
func (w *WebVisualizer) NextCommand() (control.Command, bool) {
	if w.server == nil {
		return control.Command{Type: control.CommandNone}, false
	}
	return w.server.NextCommand()
}

// WaitCommand blocks until a command arrives or the context is cancelled.
func (w *WebVisualizer) WaitCommand(ctx context.Context) (control.Command, bool) {
	if w.server == nil {
		return control.Command{Type: control.CommandNone}, false
	}
	return w.server.WaitCommand(ctx)
}

// Stop shuts the underlying server down.
func (w *WebVisualizer) Stop(ctx context.Context) error {
	if w.server == nil {
		return nil
	}
	return w.server.Stop(ctx)
}

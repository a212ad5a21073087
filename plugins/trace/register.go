package trace

import (
	"fmt"

	"github.com/ordaq/framering/hooks"
)

// PluginName is the registry name of the trace recorder.
const PluginName = "trace/recorder"

// Options configure recorder registration.
type Options struct {
	// Depth bounds the retained event ring; zero means the default.
	Depth int
	// OnRecorder receives the recorder instance when the plugin loads.
	OnRecorder func(*Recorder)
}

// Register registers the trace recorder plugin.
func Register(reg *hooks.Registry, opts Options) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	desc := hooks.PluginDescriptor{
		Name:        PluginName,
		Category:    hooks.PluginCategoryInstrumentation,
		Description: "bounded ring of structural pipeline events for the timeline view",
	}
	if err := reg.Register(desc.Name, desc, func(b *hooks.PluginBroker) error {
		if b == nil {
			return fmt.Errorf("plugin broker is nil")
		}
		r := NewRecorder(opts.Depth)
		r.Install(b)
		if opts.OnRecorder != nil {
			opts.OnRecorder(r)
		}
		return nil
	}); err != nil {
		return err
	}
	reg.Broker().RegisterPluginMetadata(desc)
	return nil
}

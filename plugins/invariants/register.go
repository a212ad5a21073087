package invariants

import (
	"fmt"

	"github.com/ordaq/framering/hooks"
)

// PluginName is the registry name of the invariant checker.
const PluginName = "invariants/checker"

// Options configure checker registration.
type Options struct {
	// OnChecker receives the checker instance when the plugin loads, so
	// the caller can query violations later.
	OnChecker func(*Checker)
}

// Register registers the invariant checker plugin.
func Register(reg *hooks.Registry, opts Options) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	desc := hooks.PluginDescriptor{
		Name:        PluginName,
		Category:    hooks.PluginCategoryChecker,
		Description: "records violations of single-grant, single-write, and frame lifecycle rules",
	}
	if err := reg.Register(desc.Name, desc, func(b *hooks.PluginBroker) error {
		if b == nil {
			return fmt.Errorf("plugin broker is nil")
		}
		c := New()
		c.Install(b)
		if opts.OnChecker != nil {
			opts.OnChecker(c)
		}
		return nil
	}); err != nil {
		return err
	}
	reg.Broker().RegisterPluginMetadata(desc)
	return nil
}

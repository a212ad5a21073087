package hooks

import (
	"sync"

	"github.com/ordaq/framering/core"
)

// PluginCategory represents the high-level role of a plugin.
type PluginCategory string

const (
	// PluginCategoryChecker covers invariant and consistency checkers.
	PluginCategoryChecker PluginCategory = "checker"
	// PluginCategoryVisualization covers UI, timeline, or monitoring plugins.
	PluginCategoryVisualization PluginCategory = "visualization"
	// PluginCategoryInstrumentation covers metrics, tracing, and diagnostics.
	PluginCategoryInstrumentation PluginCategory = "instrumentation"
)

// PluginDescriptor describes a plugin registered with the broker.
type PluginDescriptor struct {
	Name        string
	Category    PluginCategory
	Description string
}

// FrameOpenContext carries information for frame-open hooks.
type FrameOpenContext struct {
	Step           uint64
	Serial         uint64
	Timestamp      uint64
	HeaderAddr     uint64
	DeclaredGroups int
	DeclaredHits   int
}

// FrameCloseContext carries the fate of a finalized frame.
type FrameCloseContext struct {
	Step   uint64
	Result core.FrameResult
}

// GrantContext describes one write-port grant.
type GrantContext struct {
	Step      uint64
	Lane      int // meaningful when Allocator is false
	Allocator bool
}

// WriteContext describes one arena write attempt.
type WriteContext struct {
	Step      uint64
	Segment   core.SegmentID
	Offset    int
	Addr      uint64 // logical address
	Word      core.Word
	Lane      int
	Allocator bool
	Skipped   bool // blocked by a read-lock or unmapped column
}

// SpillContext describes a programmed spill link pair.
type SpillContext struct {
	Step   uint64
	Serial uint64
	Head   core.SegmentID
	Trail  core.SegmentID
}

// FlushContext describes a segment sacrifice.
type FlushContext struct {
	Step      uint64
	Segment   core.SegmentID
	Discarded int // unread metadata entries thrown away
}

// WarpContext describes a presenter read-segment jump.
type WarpContext struct {
	Step uint64
	From core.SegmentID
	To   core.SegmentID
}

// PresentContext describes presenter activity on one frame.
type PresentContext struct {
	Step    uint64
	Serial  uint64
	Segment core.SegmentID
	Offset  int
	Length  int
}

type (
	FrameOpenHook    func(ctx *FrameOpenContext) error
	FrameCloseHook   func(ctx *FrameCloseContext) error
	GrantHook        func(ctx *GrantContext) error
	WriteHook        func(ctx *WriteContext) error
	SpillHook        func(ctx *SpillContext) error
	FlushHook        func(ctx *FlushContext) error
	WarpHook         func(ctx *WarpContext) error
	PresentStartHook func(ctx *PresentContext) error
	PresentDoneHook  func(ctx *PresentContext) error
)

// HookBundle groups multiple hook handlers that belong to one plugin.
type HookBundle struct {
	FrameOpen    []FrameOpenHook
	FrameClose   []FrameCloseHook
	Grant        []GrantHook
	Write        []WriteHook
	Spill        []SpillHook
	Flush        []FlushHook
	Warp         []WarpHook
	PresentStart []PresentStartHook
	PresentDone  []PresentDoneHook
}

// PluginBroker coordinates hook registration and triggering.
type PluginBroker struct {
	mu sync.RWMutex

	frameOpenHooks    []FrameOpenHook
	frameCloseHooks   []FrameCloseHook
	grantHooks        []GrantHook
	writeHooks        []WriteHook
	spillHooks        []SpillHook
	flushHooks        []FlushHook
	warpHooks         []WarpHook
	presentStartHooks []PresentStartHook
	presentDoneHooks  []PresentDoneHook

	pluginCatalog map[PluginCategory][]PluginDescriptor
	pluginIndex   map[string]PluginDescriptor
}

// NewPluginBroker creates an empty broker instance.
func NewPluginBroker() *PluginBroker {
	return &PluginBroker{
		pluginCatalog: make(map[PluginCategory][]PluginDescriptor),
		pluginIndex:   make(map[string]PluginDescriptor),
	}
}

// RegisterFrameOpen adds a hook executed when the allocator opens a frame.
func (p *PluginBroker) RegisterFrameOpen(h FrameOpenHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameOpenHooks = append(p.frameOpenHooks, h)
}

// RegisterFrameClose adds a hook executed when a frame seals or drops.
func (p *PluginBroker) RegisterFrameClose(h FrameCloseHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frameCloseHooks = append(p.frameCloseHooks, h)
}

// RegisterGrant adds a hook executed on every write-port grant.
func (p *PluginBroker) RegisterGrant(h GrantHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grantHooks = append(p.grantHooks, h)
}

// RegisterWrite adds a hook executed on every arena write attempt.
func (p *PluginBroker) RegisterWrite(h WriteHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeHooks = append(p.writeHooks, h)
}

// RegisterSpill adds a hook executed when spill links are programmed.
func (p *PluginBroker) RegisterSpill(h SpillHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spillHooks = append(p.spillHooks, h)
}

// RegisterFlush adds a hook executed when a segment is sacrificed.
func (p *PluginBroker) RegisterFlush(h FlushHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushHooks = append(p.flushHooks, h)
}

// RegisterWarp adds a hook executed when the presenter jumps segments.
func (p *PluginBroker) RegisterWarp(h WarpHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warpHooks = append(p.warpHooks, h)
}

// RegisterPresentStart adds a hook executed when presentation begins.
func (p *PluginBroker) RegisterPresentStart(h PresentStartHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presentStartHooks = append(p.presentStartHooks, h)
}

// RegisterPresentDone adds a hook executed when a frame finishes streaming.
func (p *PluginBroker) RegisterPresentDone(h PresentDoneHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.presentDoneHooks = append(p.presentDoneHooks, h)
}

// EmitFrameOpen triggers frame-open hooks.
func (p *PluginBroker) EmitFrameOpen(ctx *FrameOpenContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]FrameOpenHook, len(p.frameOpenHooks))
	copy(handlers, p.frameOpenHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitFrameClose triggers frame-close hooks.
func (p *PluginBroker) EmitFrameClose(ctx *FrameCloseContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]FrameCloseHook, len(p.frameCloseHooks))
	copy(handlers, p.frameCloseHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitGrant triggers grant hooks.
func (p *PluginBroker) EmitGrant(ctx *GrantContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]GrantHook, len(p.grantHooks))
	copy(handlers, p.grantHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitWrite triggers write hooks.
func (p *PluginBroker) EmitWrite(ctx *WriteContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]WriteHook, len(p.writeHooks))
	copy(handlers, p.writeHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitSpill triggers spill hooks.
func (p *PluginBroker) EmitSpill(ctx *SpillContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]SpillHook, len(p.spillHooks))
	copy(handlers, p.spillHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitFlush triggers flush hooks.
func (p *PluginBroker) EmitFlush(ctx *FlushContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]FlushHook, len(p.flushHooks))
	copy(handlers, p.flushHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitWarp triggers warp hooks.
func (p *PluginBroker) EmitWarp(ctx *WarpContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]WarpHook, len(p.warpHooks))
	copy(handlers, p.warpHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitPresentStart triggers present-start hooks.
func (p *PluginBroker) EmitPresentStart(ctx *PresentContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]PresentStartHook, len(p.presentStartHooks))
	copy(handlers, p.presentStartHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// EmitPresentDone triggers present-done hooks.
func (p *PluginBroker) EmitPresentDone(ctx *PresentContext) error {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.RLock()
	handlers := make([]PresentDoneHook, len(p.presentDoneHooks))
	copy(handlers, p.presentDoneHooks)
	p.mu.RUnlock()
	for _, handler := range handlers {
		if err := handler(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RegisterBundle registers a plugin descriptor together with all hook handlers.
func (p *PluginBroker) RegisterBundle(desc PluginDescriptor, bundle HookBundle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.registerDescriptorLocked(desc)

	if len(bundle.FrameOpen) > 0 {
		p.frameOpenHooks = append(p.frameOpenHooks, bundle.FrameOpen...)
	}
	if len(bundle.FrameClose) > 0 {
		p.frameCloseHooks = append(p.frameCloseHooks, bundle.FrameClose...)
	}
	if len(bundle.Grant) > 0 {
		p.grantHooks = append(p.grantHooks, bundle.Grant...)
	}
	if len(bundle.Write) > 0 {
		p.writeHooks = append(p.writeHooks, bundle.Write...)
	}
	if len(bundle.Spill) > 0 {
		p.spillHooks = append(p.spillHooks, bundle.Spill...)
	}
	if len(bundle.Flush) > 0 {
		p.flushHooks = append(p.flushHooks, bundle.Flush...)
	}
	if len(bundle.Warp) > 0 {
		p.warpHooks = append(p.warpHooks, bundle.Warp...)
	}
	if len(bundle.PresentStart) > 0 {
		p.presentStartHooks = append(p.presentStartHooks, bundle.PresentStart...)
	}
	if len(bundle.PresentDone) > 0 {
		p.presentDoneHooks = append(p.presentDoneHooks, bundle.PresentDone...)
	}
}

// RegisterPluginMetadata stores plugin metadata without registering hooks.
func (p *PluginBroker) RegisterPluginMetadata(desc PluginDescriptor) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registerDescriptorLocked(desc)
}

// ListPlugins returns descriptors for plugins in the requested category.
func (p *PluginBroker) ListPlugins(category PluginCategory) []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	catalog := p.pluginCatalog[category]
	if len(catalog) == 0 {
		return nil
	}
	out := make([]PluginDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ListAllPlugins returns descriptors of every registered plugin.
func (p *PluginBroker) ListAllPlugins() []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PluginDescriptor, 0, len(p.pluginIndex))
	for _, desc := range p.pluginIndex {
		out = append(out, desc)
	}
	return out
}

func (p *PluginBroker) registerDescriptorLocked(desc PluginDescriptor) {
	if desc.Name == "" {
		return
	}
	if _, exists := p.pluginIndex[desc.Name]; exists {
		return
	}
	p.pluginIndex[desc.Name] = desc
	p.pluginCatalog[desc.Category] = append(p.pluginCatalog[desc.Category], desc)
}

package main

import (
	"fmt"

	"github.com/ordaq/framering/core"
	"github.com/ordaq/framering/queue"
)

// Lane is one ingest input: the fixed-latency conveyor from the feeder,
// the show-ahead ticket ring the allocator classifies against, the staging
// buffer holding hit words until they are copied, and the copy engine that
// moves them. Admission is credit-gated on both the ticket ring and the
// staging buffer, so neither can overflow in flight.
type Lane struct {
	id       int
	conveyor *Conveyor
	tickets  *queue.Ring[core.Ticket]

	ticketCredit  *queue.CreditCounter
	stagingCredit *queue.CreditCounter
	staging       []core.Word
	stagingHead   uint64

	engine *CopyEngine
}

// NewLane builds a lane and its copy engine from the validated config.
func NewLane(id int, cfg *Config, port *WritePort) *Lane {
	l := &Lane{
		id:       id,
		conveyor: NewConveyor(cfg.ConveyorLatency),
		tickets: queue.NewRing[core.Ticket](
			fmt.Sprintf("lane%d_tickets", id), cfg.TicketDepth, nil, queue.RingHooks[core.Ticket]{}),
		ticketCredit:  queue.NewCreditCounter(fmt.Sprintf("lane%d_ticket_credit", id), cfg.TicketDepth),
		stagingCredit: queue.NewCreditCounter(fmt.Sprintf("lane%d_staging_credit", id), cfg.StagingWords),
		staging:       make([]core.Word, cfg.StagingWords),
	}
	l.engine = NewCopyEngine(l, port)
	return l
}

// ID returns the lane index.
func (l *Lane) ID() int {
	if l == nil {
		return -1
	}
	return l.id
}

// Engine returns the lane's copy engine.
func (l *Lane) Engine() *CopyEngine {
	if l == nil {
		return nil
	}
	return l.engine
}

// TryShip reserves credit for a ticket and its staged words, then puts the
// shipment on the conveyor. Returns false without side effects when either
// credit is short; the feeder retries next step.
func (l *Lane) TryShip(t core.Ticket, words []core.Word, step uint64) bool {
	if l == nil {
		return false
	}
	if !l.ticketCredit.Take(1) {
		return false
	}
	if len(words) > 0 && !l.stagingCredit.Take(len(words)) {
		if err := l.ticketCredit.Return(1); err != nil {
			GetLogger().Errorf("Lane %d ticket credit rollback: %v", l.id, err)
		}
		return false
	}
	l.conveyor.Send(t, words, step)
	return true
}

// Tick lands due shipments: staged words are written at the staging head,
// the ticket gets its absolute source offset, and it joins the ring.
func (l *Lane) Tick(step uint64) {
	if l == nil {
		return
	}
	for _, s := range l.conveyor.Arrivals(step) {
		t := s.Ticket
		if len(s.Words) > 0 {
			t.SrcOffset = l.stagingHead
			for _, w := range s.Words {
				l.staging[l.stagingHead%uint64(len(l.staging))] = w
				l.stagingHead++
			}
		}
		if !l.tickets.Push(t, step) {
			// Credit was taken at ship time, so this cannot fill up.
			GetLogger().Errorf("Lane %d ticket ring rejected a credited ticket", l.id)
		}
	}
}

// HeadTicket peeks the oldest queued ticket without consuming it.
func (l *Lane) HeadTicket() (core.Ticket, bool) {
	if l == nil {
		return core.Ticket{}, false
	}
	return l.tickets.Peek()
}

// ConsumeHead pops the head ticket and returns its credit to the feeder.
func (l *Lane) ConsumeHead(step uint64) {
	if l == nil {
		return
	}
	if _, ok := l.tickets.Pop(step); !ok {
		return
	}
	if err := l.ticketCredit.Return(1); err != nil {
		GetLogger().Errorf("Lane %d ticket credit: %v", l.id, err)
	}
}

// StagingWord reads a staged word by absolute offset.
func (l *Lane) StagingWord(off uint64) core.Word {
	if l == nil || len(l.staging) == 0 {
		return 0
	}
	return l.staging[off%uint64(len(l.staging))]
}

func (l *Lane) returnStaging(n int) {
	if l == nil || n <= 0 {
		return
	}
	if err := l.stagingCredit.Return(n); err != nil {
		GetLogger().Errorf("Lane %d staging credit: %v", l.id, err)
	}
}

// TicketsQueued returns the ticket ring depth.
func (l *Lane) TicketsQueued() int {
	if l == nil {
		return 0
	}
	return l.tickets.Len()
}

// StagingFree returns how many staging words the feeder may still reserve.
func (l *Lane) StagingFree() int {
	if l == nil {
		return 0
	}
	return l.stagingCredit.Available()
}

// InFlight returns how many shipments are still in the conveyor.
func (l *Lane) InFlight() int {
	if l == nil {
		return 0
	}
	return l.conveyor.InFlightCount()
}

// Info returns the lane snapshot. Quantum and mask state belong to the
// arbiter and allocator; the merger fills them in.
func (l *Lane) Info() core.LaneInfo {
	if l == nil {
		return core.LaneInfo{ID: -1}
	}
	return core.LaneInfo{
		ID:            l.id,
		TicketsQueued: l.tickets.Len(),
		HandlesQueued: l.engine.Pending(),
		StagingFree:   l.stagingCredit.Available(),
		InFlight:      l.conveyor.InFlightCount(),
	}
}

// Reset clears the conveyor, rings, staging, and credits.
func (l *Lane) Reset() {
	if l == nil {
		return
	}
	l.conveyor.Reset()
	l.tickets.Clear()
	l.ticketCredit.Refill()
	l.stagingCredit.Refill()
	l.stagingHead = 0
	for i := range l.staging {
		l.staging[i] = 0
	}
	l.engine.Reset()
}

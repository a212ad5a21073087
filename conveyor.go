package main

import "github.com/ordaq/framering/core"

// Shipment is one ticket and its staged hit words in transit to a lane.
type Shipment struct {
	Ticket core.Ticket
	Words  []core.Word

	arrivalStep uint64
}

// Conveyor models the fixed-latency ingest path between the feeder and a
// lane's staging buffer. Order is preserved; capacity is unbounded because
// admission is controlled by lane credit before anything is sent.
type Conveyor struct {
	latency  int
	inFlight []Shipment
}

// NewConveyor creates a conveyor with the given delivery latency in steps.
func NewConveyor(latency int) *Conveyor {
	if latency < 0 {
		latency = 0
	}
	return &Conveyor{latency: latency}
}

// Send enqueues a shipment arriving latency steps from now.
func (c *Conveyor) Send(t core.Ticket, words []core.Word, step uint64) {
	if c == nil {
		return
	}
	c.inFlight = append(c.inFlight, Shipment{
		Ticket:      t,
		Words:       words,
		arrivalStep: step + uint64(c.latency),
	})
}

// Arrivals removes and returns every shipment due at the given step, in
// send order.
func (c *Conveyor) Arrivals(step uint64) []Shipment {
	if c == nil || len(c.inFlight) == 0 {
		return nil
	}
	var arrived []Shipment
	kept := c.inFlight[:0]
	for _, s := range c.inFlight {
		if s.arrivalStep <= step {
			arrived = append(arrived, s)
		} else {
			kept = append(kept, s)
		}
	}
	c.inFlight = kept
	return arrived
}

// InFlightCount returns how many shipments are still in transit.
func (c *Conveyor) InFlightCount() int {
	if c == nil {
		return 0
	}
	return len(c.inFlight)
}

// Reset drops everything in transit.
func (c *Conveyor) Reset() {
	if c == nil {
		return
	}
	c.inFlight = c.inFlight[:0]
}

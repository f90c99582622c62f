// Package progress implements a non-blocking multi-producer,
// single-consumer event queue carrying the sync engine's observability
// events, exposed as a Sink interface passed into the orchestrator and
// scheduler.
package progress

import "time"

// Level classifies a log event.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Status mirrors a tenant's run lifecycle state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusFailed  Status = "failed"
)

// EventKind discriminates the Bus's typed event union.
type EventKind string

const (
	EventLog              EventKind = "log"
	EventProgress         EventKind = "progress"
	EventStatus           EventKind = "status"
	EventDone             EventKind = "done"
	EventAllDone          EventKind = "all_done"
	EventSchedulerUpdated EventKind = "scheduler_updated"
)

// Event is one message carried on the bus. Only the fields relevant to
// Kind are populated; the rest are zero.
type Event struct {
	Kind        EventKind
	CompanyName string
	Level       Level
	Text        string
	Percent     float64
	Label       string
	Status      Status
	Success     bool
	At          time.Time
}

// Sink is the producer-facing interface the Orchestrator and Scheduler
// depend on; a Bus satisfies it, and tests can supply a fake.
type Sink interface {
	Log(companyName string, level Level, text string)
	Progress(companyName string, percent float64, label string)
	Status(companyName string, status Status)
	Done(companyName string, success bool)
	AllDone()
	SchedulerUpdated()
}

// Bus is a non-blocking multi-producer/single-consumer queue. Producers
// never block: submit drops the event if the channel is full or the bus
// has been shut down.
type Bus struct {
	events  chan Event
	closed  chan struct{}
	dropped chan struct{} // not allocated by NewBus and not read or written by any method
	now     func() time.Time
}

// NewBus allocates a bus with the given channel capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 256
	}
	return &Bus{
		events: make(chan Event, capacity),
		closed: make(chan struct{}),
		now:    time.Now,
	}
}

// Events returns the consumer-side read channel.
func (b *Bus) Events() <-chan Event {
	return b.events
}

// Shutdown stops accepting further events: every later Sink call drops
// its event. The events channel itself is never closed, so a producer
// racing Shutdown cannot panic; an event already queued stays readable
// from Events().
func (b *Bus) Shutdown() {
	select {
	case <-b.closed:
		return
	default:
		close(b.closed)
	}
}

func (b *Bus) submit(evt Event) {
	evt.At = b.now()
	select {
	case <-b.closed:
		return
	default:
	}
	select {
	case b.events <- evt:
	default:
		// queue full: drop rather than block the producer.
	}
}

func (b *Bus) Log(companyName string, level Level, text string) {
	b.submit(Event{Kind: EventLog, CompanyName: companyName, Level: level, Text: text})
}

func (b *Bus) Progress(companyName string, percent float64, label string) {
	b.submit(Event{Kind: EventProgress, CompanyName: companyName, Percent: percent, Label: label})
}

func (b *Bus) Status(companyName string, status Status) {
	b.submit(Event{Kind: EventStatus, CompanyName: companyName, Status: status})
}

func (b *Bus) Done(companyName string, success bool) {
	b.submit(Event{Kind: EventDone, CompanyName: companyName, Success: success})
}

func (b *Bus) AllDone() {
	b.submit(Event{Kind: EventAllDone})
}

func (b *Bus) SchedulerUpdated() {
	b.submit(Event{Kind: EventSchedulerUpdated})
}

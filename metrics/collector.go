// Package metrics provides per-session counters.
//
// The Collector accumulates counters during a single bridge session. It is a
// leaf package with no internal dependencies; message names and outcome
// categories are plain strings.
package metrics

import (
	"maps"
	"sync"
)

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Protocol output
	MessagesEmitted int64
	MessagesByName  map[string]int64
	EncodeErrors    int64

	// Test lifecycle
	TestsStarted  int64
	TestsFinished int64
	// OutcomesByCategory counts reports by the engine's result category
	// (passed, failed, skipped, error, xfailed, ...).
	OutcomesByCategory map[string]int64
	// OrphanedRecords counts pending records discarded by a new test start.
	OrphanedRecords int64
	ItemsCollected  int64
	StrayExceptions int64
	InternalErrors  int64
	Interrupts      int64

	// Inbound event stream
	EventsReceived  int64
	IPCDecodeErrors int64

	// Engine process
	EngineLaunchSuccess int64
	EngineLaunchFailure int64

	// Dimensions (informational, set at construction)
	Engine    string
	SessionID string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	messagesEmitted int64
	messagesByName  map[string]int64
	encodeErrors    int64

	testsStarted       int64
	testsFinished      int64
	outcomesByCategory map[string]int64
	orphanedRecords    int64
	itemsCollected     int64
	strayExceptions    int64
	internalErrors     int64
	interrupts         int64

	eventsReceived  int64
	ipcDecodeErrors int64

	engineLaunchSuccess int64
	engineLaunchFailure int64

	engine    string
	sessionID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(engine, sessionID string) *Collector {
	return &Collector{
		messagesByName:     make(map[string]int64),
		outcomesByCategory: make(map[string]int64),
		engine:             engine,
		sessionID:          sessionID,
	}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Protocol output ---

// IncMessage records one emitted framed message.
func (c *Collector) IncMessage(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.messagesEmitted++
	c.messagesByName[name]++
	c.mu.Unlock()
}

// IncEncodeError records a failed message write.
func (c *Collector) IncEncodeError() {
	if c == nil {
		return
	}
	c.inc(&c.encodeErrors)
}

// --- Test lifecycle ---

// IncTestStarted records a test start.
func (c *Collector) IncTestStarted() {
	if c == nil {
		return
	}
	c.inc(&c.testsStarted)
}

// IncTestFinished records an emitted test record.
func (c *Collector) IncTestFinished() {
	if c == nil {
		return
	}
	c.inc(&c.testsFinished)
}

// IncOutcome records a classified report. Empty categories are ignored.
func (c *Collector) IncOutcome(category string) {
	if c == nil || category == "" {
		return
	}
	c.mu.Lock()
	c.outcomesByCategory[category]++
	c.mu.Unlock()
}

// IncOrphanedRecord records a pending record discarded without a finish.
func (c *Collector) IncOrphanedRecord() {
	if c == nil {
		return
	}
	c.inc(&c.orphanedRecords)
}

// IncItemCollected records a discovered test in collect-only mode.
func (c *Collector) IncItemCollected() {
	if c == nil {
		return
	}
	c.inc(&c.itemsCollected)
}

// IncStrayException records an exception reported outside any test.
func (c *Collector) IncStrayException() {
	if c == nil {
		return
	}
	c.inc(&c.strayExceptions)
}

// IncInternalError records an engine internal error.
func (c *Collector) IncInternalError() {
	if c == nil {
		return
	}
	c.inc(&c.internalErrors)
}

// IncInterrupt records a keyboard/process interrupt.
func (c *Collector) IncInterrupt() {
	if c == nil {
		return
	}
	c.inc(&c.interrupts)
}

// --- Inbound event stream ---

// IncEventReceived records one decoded inbound event.
func (c *Collector) IncEventReceived() {
	if c == nil {
		return
	}
	c.inc(&c.eventsReceived)
}

// IncIPCDecodeErrors records an inbound frame decode error.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.ipcDecodeErrors)
}

// --- Engine process ---

// IncEngineLaunchSuccess records a successful engine launch.
func (c *Collector) IncEngineLaunchSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.engineLaunchSuccess)
}

// IncEngineLaunchFailure records a failed engine launch.
func (c *Collector) IncEngineLaunchFailure() {
	if c == nil {
		return
	}
	c.inc(&c.engineLaunchFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		MessagesEmitted: c.messagesEmitted,
		MessagesByName:  maps.Clone(c.messagesByName),
		EncodeErrors:    c.encodeErrors,

		TestsStarted:       c.testsStarted,
		TestsFinished:      c.testsFinished,
		OutcomesByCategory: maps.Clone(c.outcomesByCategory),
		OrphanedRecords:    c.orphanedRecords,
		ItemsCollected:     c.itemsCollected,
		StrayExceptions:    c.strayExceptions,
		InternalErrors:     c.internalErrors,
		Interrupts:         c.interrupts,

		EventsReceived:  c.eventsReceived,
		IPCDecodeErrors: c.ipcDecodeErrors,

		EngineLaunchSuccess: c.engineLaunchSuccess,
		EngineLaunchFailure: c.engineLaunchFailure,

		Engine:    c.engine,
		SessionID: c.sessionID,
	}
}

package metrics

import (
	"sync/atomic"
	"time"
)

type SearchMetric struct {
	SearchID       string
	Rollouts       int
	Expansions     int
	TerminalLeaves int
	Duration       time.Duration
	IsTreeReused   bool
}

// Collector records counters for a single search. Start resets the counters.
type Collector interface {
	Start(searchID string)
	SetTreeReused(value bool)
	AddRollout()
	AddExpansion()
	AddTerminalLeaf()
	Complete() SearchMetric
}

type collector struct {
	searchID       string
	startTime      time.Time
	rollouts       atomic.Int32
	expansions     atomic.Int32
	terminalLeaves atomic.Int32
	isTreeReused   atomic.Bool
}

func NewCollector() Collector {
	return &collector{}
}

func (m *collector) Start(searchID string) {
	m.searchID = searchID
	m.startTime = time.Now()
	m.rollouts.Store(0)
	m.expansions.Store(0)
	m.terminalLeaves.Store(0)
}

func (m *collector) SetTreeReused(value bool) {
	m.isTreeReused.Store(value)
}

func (m *collector) AddRollout() {
	m.rollouts.Add(1)
}

func (m *collector) AddExpansion() {
	m.expansions.Add(1)
}

func (m *collector) AddTerminalLeaf() {
	m.terminalLeaves.Add(1)
}

func (m *collector) Complete() SearchMetric {
	return SearchMetric{
		SearchID:       m.searchID,
		Rollouts:       int(m.rollouts.Load()),
		Expansions:     int(m.expansions.Load()),
		TerminalLeaves: int(m.terminalLeaves.Load()),
		Duration:       time.Since(m.startTime),
		IsTreeReused:   m.isTreeReused.Load(),
	}
}

type dummyCollector struct{}

func NewDummyCollector() Collector {
	return &dummyCollector{}
}

func (m *dummyCollector) Start(searchID string)    {}
func (m *dummyCollector) SetTreeReused(value bool) {}
func (m *dummyCollector) AddRollout()              {}
func (m *dummyCollector) AddExpansion()            {}
func (m *dummyCollector) AddTerminalLeaf()         {}
func (m *dummyCollector) Complete() SearchMetric   { return SearchMetric{} }

// Package metrics provides in-memory request statistics for the chat client.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Name        string
	Count       int64
	Failures    int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64
}

// Snapshot represents the collected statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64
	Operations    []OperationSnapshot
}

// Operation names for the collector.
const (
	OpChat              = "chat"
	OpListConversations = "list_conversations"
	OpGetConversation   = "get_conversation"
	OpTokenRefresh      = "token_refresh"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe. A nil *Collector discards everything.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// RecordFailure records timing for an operation that returned an error.
func (c *Collector) RecordFailure(op string, duration time.Duration) {
	if c == nil {
		return
	}
	c.RecordTiming(op, duration)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops[op].Failures++
}

// Track records the outcome of an operation started at start.
func (c *Collector) Track(op string, start time.Time, err error) {
	if err != nil {
		c.RecordFailure(op, time.Since(start))
		return
	}
	c.RecordTiming(op, time.Since(start))
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(name string, m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Name:        name,
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics, sorted by operation name.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{UptimeSeconds: time.Since(c.startTime).Seconds()}
	for name, m := range c.ops {
		if s := snapshotOp(name, m); s != nil {
			snap.Operations = append(snap.Operations, *s)
		}
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Name < snap.Operations[j].Name
	})
	return snap
}

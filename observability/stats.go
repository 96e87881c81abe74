// Package observability samples engine and process health for the
// stats surface: state counts, dropped events, CPU and memory of the
// client process.
package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	_ "github.com/shirou/gopsutil"
	"github.com/shirou/gopsutil/process"
)

// Snapshot is one sampled view of the engine.
type Snapshot struct {
	Conversations int       `json:"conversations"`
	Messages      int       `json:"messages"`
	DroppedEvents uint64    `json:"dropped_events"`
	AllocMemMb    uint64    `json:"alloc_mem_mb"`
	NumGC         uint32    `json:"num_gc"`
	CPUPercent    float64   `json:"cpu_percent"`
	RAMPercent    float32   `json:"ram_percent"`
	SampledAt     time.Time `json:"sampled_at"`
}

// StatsSource is the slice of the engine the monitor reads.
type StatsSource interface {
	Counts() (conversations, messages int)
	Dropped() uint64
}

// Monitor samples engine counters and process metrics on a fixed
// interval. It runs as a supervised worker.
type Monitor struct {
	mu       sync.RWMutex
	log      *slog.Logger
	source   StatsSource
	interval time.Duration
	latest   Snapshot
}

func NewMonitor(log *slog.Logger, source StatsSource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{log: log, source: source, interval: interval}
}

// Latest returns the most recent sample.
func (m *Monitor) Latest() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func (m *Monitor) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.log.Warn("Process metrics unavailable", "err", err)
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Context done, stopping stats sampling")
			return nil
		case <-ticker.C:
			m.sample(proc)
		}
	}
}

func (m *Monitor) sample(proc *process.Process) {
	conversations, messages := m.source.Counts()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snapshot := Snapshot{
		Conversations: conversations,
		Messages:      messages,
		DroppedEvents: m.source.Dropped(),
		AllocMemMb:    memStats.Alloc / 1024 / 1024,
		NumGC:         memStats.NumGC,
		SampledAt:     time.Now().UTC(),
	}

	if proc != nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			snapshot.CPUPercent = cpu
		} else {
			m.log.Debug("Error while finding process cpu usage", "err", err)
		}
		if ram, err := proc.MemoryPercent(); err == nil {
			snapshot.RAMPercent = ram
		} else {
			m.log.Debug("Error while finding process ram usage", "err", err)
		}
	}

	m.mu.Lock()
	m.latest = snapshot
	m.mu.Unlock()
}

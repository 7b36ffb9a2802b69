// Package profiling is a lightweight per-tick CPU profiler for the engine's
// systems.
package profiling

import (
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	mu         sync.Mutex
	tickTotals = make(map[string]time.Duration)
)

// Track returns a stop function that records the elapsed time under the given
// name. Usage: defer profiling.Track("engine.dispatchPipeline")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		tickTotals[name] += d
		mu.Unlock()
	}
}

// ResetFrame clears the current tick's totals. The engine calls it at the end
// of every tick.
func ResetFrame() {
	mu.Lock()
	for k := range tickTotals {
		delete(tickTotals, k)
	}
	mu.Unlock()
}

// Snapshot returns a copy of the current tick's totals.
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(tickTotals))
	for k, v := range tickTotals {
		out[k] = v
	}
	return out
}

// Summary renders the current totals as a single sorted line for logging,
// slowest system first.
func Summary() string {
	snapshot := Snapshot()

	type entry struct {
		name string
		d    time.Duration
	}
	entries := make([]entry, 0, len(snapshot))
	for name, d := range snapshot {
		entries = append(entries, entry{name, d})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].d > entries[j].d })

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.name)
		b.WriteString("=")
		b.WriteString(e.d.String())
	}
	return b.String()
}

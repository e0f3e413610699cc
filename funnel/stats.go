package funnel

import (
	"fmt"
	"time"
)

// State is a worker lifecycle state.
type State int

const (
	StateRunning State = iota
	StateStopping
	StateStopped
	StateFailed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stage names.
const (
	StageTransform = "transform"
	StageReduce    = "reduce"
)

// WorkerStats is what a worker reports when it exits. The counters are owned
// by the worker goroutine while it runs.
type WorkerStats struct {
	Name      string
	Stage     string
	State     State
	Processed int
	Emitted   int
}

// Stats is a snapshot of a run.
type Stats struct {
	RunID    string
	Fed      int
	Emitted  int
	Duration time.Duration
	// Workers holds the workers that have exited so far, in exit order.
	Workers []WorkerStats
}

// Processed sums the tasks dispatched by the exited workers of stage.
func (s Stats) Processed(stage string) int {
	n := 0
	for _, w := range s.Workers {
		if w.Stage == stage {
			n += w.Processed
		}
	}
	return n
}

// Forwarded sums the non-nil results produced by the exited workers of stage.
func (s Stats) Forwarded(stage string) int {
	n := 0
	for _, w := range s.Workers {
		if w.Stage == stage {
			n += w.Emitted
		}
	}
	return n
}

// Stopped reports whether every worker has exited cleanly.
func (s Stats) Stopped(workers int) bool {
	if len(s.Workers) != workers {
		return false
	}
	for _, w := range s.Workers {
		if w.State != StateStopped {
			return false
		}
	}
	return true
}

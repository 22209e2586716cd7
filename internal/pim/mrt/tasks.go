// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mrt

import (
	"github.com/google/uuid"

	"pim-sm.dev/pimd/internal/pim/addr"
)

// TaskKind enumerates the task types the engine dispatches (spec §4.4).
type TaskKind int

const (
	TaskRPChanged TaskKind = iota
	TaskPimNbrChanged
	TaskPimNbrGenIDChanged
	TaskIAmDR
	TaskMribChanged
	TaskMyIPAddress
	TaskMyIPSubnetAddress
	TaskStartVif
	TaskStopVif
	TaskDeletePimMfc
	TaskSPTSwitchThresholdChanged
)

func (k TaskKind) String() string {
	switch k {
	case TaskRPChanged:
		return "rp_changed"
	case TaskPimNbrChanged:
		return "pim_nbr_changed"
	case TaskPimNbrGenIDChanged:
		return "pim_nbr_gen_id_changed"
	case TaskIAmDR:
		return "i_am_dr"
	case TaskMribChanged:
		return "mrib_changed"
	case TaskMyIPAddress:
		return "my_ip_address"
	case TaskMyIPSubnetAddress:
		return "my_ip_subnet_address"
	case TaskStartVif:
		return "start_vif"
	case TaskStopVif:
		return "stop_vif"
	case TaskDeletePimMfc:
		return "delete_pim_mfc"
	default:
		return "spt_switch_threshold_changed"
	}
}

// Task is one unit of work enqueued against the engine. ID is a
// correlation identifier for log tracing, not used for dedup or
// ordering.
type Task struct {
	ID       string
	Kind     TaskKind
	Vif      int
	Addr     addr.Addr
	NbrAddr  addr.Addr
	Key      Key
}

// Engine drains tasks in FIFO order, one at a time, matching the
// single-threaded cooperative scheduling model of spec §4.4: no task may
// observe partially-updated state for an MRE it did not itself mutate,
// so handlers never re-enter Drain.
type Engine struct {
	store   *Store
	queue   []Task
	running bool
	// processing is the shadow list large handlers splice their working
	// set onto, so a handler iterating many MREs tolerates concurrent
	// mutation (an MRE being deleted mid-scan) without re-entering the
	// live index (spec §4.4).
	processing []*Entry

	handlers map[TaskKind]func(*Engine, Task)
}

// NewEngine creates a task engine bound to store.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store, handlers: make(map[TaskKind]func(*Engine, Task))}
}

// OnTask registers the handler invoked for a given task kind. Handlers
// are looked up at drain time, so registration order doesn't matter.
func (eng *Engine) OnTask(kind TaskKind, h func(*Engine, Task)) {
	eng.handlers[kind] = h
}

// Enqueue appends a task to the FIFO queue, stamping it with a
// correlation ID for log tracing.
func (eng *Engine) Enqueue(t Task) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	eng.queue = append(eng.queue, t)
}

// Store returns the MRE store the engine drains tasks against.
func (eng *Engine) Store() *Store { return eng.store }

// Drain processes every queued task to completion, in FIFO order. It is
// not reentrant: calling Drain from within a handler panics, since the
// scheduling model guarantees exactly one task is active at a time.
func (eng *Engine) Drain() {
	if eng.running {
		panic("mrt: Engine.Drain is not reentrant")
	}
	eng.running = true
	defer func() { eng.running = false }()

	for len(eng.queue) > 0 {
		t := eng.queue[0]
		eng.queue = eng.queue[1:]
		if h, ok := eng.handlers[t.Kind]; ok {
			h(eng, t)
		}
	}
}

// SpliceProcessing moves entries onto the processing shadow list for the
// duration of a sweep, returning a function that clears it. Handlers use
// this instead of iterating Store.All() directly when the sweep itself
// may delete entries (spec §4.4).
func (eng *Engine) SpliceProcessing(entries []*Entry) func() {
	eng.processing = entries
	return func() { eng.processing = nil }
}

// Processing returns the entries currently spliced for an in-progress
// sweep.
func (eng *Engine) Processing() []*Entry { return eng.processing }

// QueueLen reports the number of tasks still pending, for metrics.
func (eng *Engine) QueueLen() int { return len(eng.queue) }

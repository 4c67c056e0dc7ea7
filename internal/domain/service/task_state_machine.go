package service

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskState is one state of a gateway task's lifecycle: Planning moves to
// an optional AwaitingApproval hold, then Executing, then one of the three
// terminal outcomes.
type TaskState string

const (
	TaskPlanning         TaskState = "planning"
	TaskAwaitingApproval TaskState = "awaiting_approval"
	TaskExecuting        TaskState = "executing"
	TaskSuccess          TaskState = "success"
	TaskBlocked          TaskState = "blocked"
	TaskError            TaskState = "error"
)

var validTaskTransitions = map[TaskState]map[TaskState]bool{
	TaskPlanning: {
		TaskAwaitingApproval: true,
		TaskExecuting:        true,
		TaskBlocked:          true,
		TaskError:            true,
	},
	TaskAwaitingApproval: {
		TaskExecuting: true,
		TaskBlocked:   true,
		TaskError:     true,
	},
	TaskExecuting: {
		TaskSuccess: true,
		TaskBlocked: true,
		TaskError:   true,
	},
	// Terminal states — no transitions out
	TaskSuccess: {},
	TaskBlocked: {},
	TaskError:   {},
}

// TaskStateSnapshot captures a task's runtime state at a point in time.
type TaskStateSnapshot struct {
	State         TaskState     `json:"state"`
	Step          int           `json:"step"`
	TotalSteps    int           `json:"total_steps"`
	ToolsExecuted int           `json:"tools_executed"`
	Elapsed       time.Duration `json:"elapsed"`
	LastTool      string        `json:"last_tool,omitempty"`
}

// TaskStateMachine drives one task through Planning → AwaitingApproval? →
// Executing → {Success | Blocked | Error}. Thread-safe.
type TaskStateMachine struct {
	mu            sync.RWMutex
	state         TaskState
	step          int
	totalSteps    int
	toolsExecuted int
	startTime     time.Time
	lastTool      string
	logger        *zap.Logger

	listeners []func(from, to TaskState, snap TaskStateSnapshot)
}

// NewTaskStateMachine creates a task state machine starting in Planning.
// totalSteps is the number of steps in the task's plan (0 until known).
func NewTaskStateMachine(totalSteps int, logger *zap.Logger) *TaskStateMachine {
	return &TaskStateMachine{
		state:      TaskPlanning,
		totalSteps: totalSteps,
		startTime:  time.Now(),
		logger:     logger,
	}
}

func (sm *TaskStateMachine) State() TaskState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

func (sm *TaskStateMachine) Snapshot() TaskStateSnapshot {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.snapshotLocked()
}

func (sm *TaskStateMachine) snapshotLocked() TaskStateSnapshot {
	return TaskStateSnapshot{
		State:         sm.state,
		Step:          sm.step,
		TotalSteps:    sm.totalSteps,
		ToolsExecuted: sm.toolsExecuted,
		Elapsed:       time.Since(sm.startTime),
		LastTool:      sm.lastTool,
	}
}

// Transition attempts to move to a new state, returning an error if the
// transition is not allowed from the current state.
func (sm *TaskStateMachine) Transition(to TaskState) error {
	sm.mu.Lock()
	from := sm.state

	allowed, ok := validTaskTransitions[from]
	if !ok || !allowed[to] {
		sm.mu.Unlock()
		err := fmt.Errorf("invalid task state transition: %s → %s", from, to)
		if sm.logger != nil {
			sm.logger.Error("Task state machine violation", zap.Error(err))
		}
		return err
	}

	sm.state = to
	snap := sm.snapshotLocked()
	listeners := make([]func(from, to TaskState, snap TaskStateSnapshot), len(sm.listeners))
	copy(listeners, sm.listeners)
	sm.mu.Unlock()

	if sm.logger != nil {
		sm.logger.Debug("Task state transition",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Int("step", snap.Step),
		)
	}

	for _, fn := range listeners {
		fn(from, to, snap)
	}
	return nil
}

// OnTransition registers a listener called on every state change.
func (sm *TaskStateMachine) OnTransition(fn func(from, to TaskState, snap TaskStateSnapshot)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.listeners = append(sm.listeners, fn)
}

// SetStep updates the current plan-step index.
func (sm *TaskStateMachine) SetStep(step int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.step = step
}

// RecordToolExec records a tool-call step.
func (sm *TaskStateMachine) RecordToolExec(toolName string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.toolsExecuted++
	sm.lastTool = toolName
}

// IsTerminal returns true if the task has reached a final outcome.
func (sm *TaskStateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	switch sm.state {
	case TaskSuccess, TaskBlocked, TaskError:
		return true
	}
	return false
}

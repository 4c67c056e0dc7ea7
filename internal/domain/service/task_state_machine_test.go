package service

import "testing"

func TestNewTaskStateMachine_StartsInPlanning(t *testing.T) {
	sm := NewTaskStateMachine(0, testLogger())
	if sm.State() != TaskPlanning {
		t.Fatalf("expected initial state planning, got %s", sm.State())
	}
	if sm.IsTerminal() {
		t.Fatal("planning must not be terminal")
	}
}

func TestTaskTransition_ValidPaths(t *testing.T) {
	tests := []struct {
		name string
		path []TaskState
	}{
		{"planning -> executing -> success", []TaskState{TaskExecuting, TaskSuccess}},
		{"planning -> awaiting_approval -> executing -> success", []TaskState{TaskAwaitingApproval, TaskExecuting, TaskSuccess}},
		{"planning -> awaiting_approval -> blocked", []TaskState{TaskAwaitingApproval, TaskBlocked}},
		{"planning -> blocked", []TaskState{TaskBlocked}},
		{"planning -> error", []TaskState{TaskError}},
		{"planning -> executing -> blocked", []TaskState{TaskExecuting, TaskBlocked}},
		{"planning -> executing -> error", []TaskState{TaskExecuting, TaskError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewTaskStateMachine(0, testLogger())
			for _, to := range tt.path {
				if err := sm.Transition(to); err != nil {
					t.Fatalf("unexpected error transitioning to %s: %v", to, err)
				}
			}
			if sm.State() != tt.path[len(tt.path)-1] {
				t.Fatalf("expected final state %s, got %s", tt.path[len(tt.path)-1], sm.State())
			}
		})
	}
}

func TestTaskTransition_InvalidPaths(t *testing.T) {
	tests := []struct {
		name string
		from TaskState
		to   TaskState
	}{
		{"planning -> success direct", TaskPlanning, TaskSuccess},
		{"success -> executing", TaskSuccess, TaskExecuting},
		{"blocked -> executing", TaskBlocked, TaskExecuting},
		{"error -> planning", TaskError, TaskPlanning},
		{"awaiting_approval -> planning", TaskAwaitingApproval, TaskPlanning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewTaskStateMachine(0, testLogger())
			switch tt.from {
			case TaskAwaitingApproval:
				mustTaskTransition(t, sm, TaskAwaitingApproval)
			case TaskExecuting:
				mustTaskTransition(t, sm, TaskExecuting)
			case TaskSuccess:
				mustTaskTransition(t, sm, TaskExecuting)
				mustTaskTransition(t, sm, TaskSuccess)
			case TaskBlocked:
				mustTaskTransition(t, sm, TaskBlocked)
			case TaskError:
				mustTaskTransition(t, sm, TaskError)
			}
			if err := sm.Transition(tt.to); err == nil {
				t.Fatalf("expected error transitioning %s -> %s, got nil", tt.from, tt.to)
			}
		})
	}
}

func mustTaskTransition(t *testing.T, sm *TaskStateMachine, to TaskState) {
	t.Helper()
	if err := sm.Transition(to); err != nil {
		t.Fatalf("unexpected error transitioning to %s: %v", to, err)
	}
}

func TestTaskIsTerminal(t *testing.T) {
	tests := []struct {
		state    TaskState
		terminal bool
	}{
		{TaskPlanning, false},
		{TaskAwaitingApproval, false},
		{TaskExecuting, false},
		{TaskSuccess, true},
		{TaskBlocked, true},
		{TaskError, true},
	}

	for _, tt := range tests {
		sm := NewTaskStateMachine(0, testLogger())
		switch tt.state {
		case TaskAwaitingApproval, TaskExecuting, TaskBlocked, TaskError:
			mustTaskTransition(t, sm, tt.state)
		case TaskSuccess:
			mustTaskTransition(t, sm, TaskExecuting)
			mustTaskTransition(t, sm, TaskSuccess)
		}
		if got := sm.IsTerminal(); got != tt.terminal {
			t.Fatalf("state %s: expected terminal=%v, got %v", tt.state, tt.terminal, got)
		}
	}
}

func TestTaskOnTransition_ListenerFiresWithSnapshot(t *testing.T) {
	sm := NewTaskStateMachine(3, testLogger())
	var gotFrom, gotTo TaskState
	var gotStep int
	sm.OnTransition(func(from, to TaskState, snap TaskStateSnapshot) {
		gotFrom, gotTo = from, to
		gotStep = snap.Step
	})

	sm.SetStep(2)
	mustTaskTransition(t, sm, TaskExecuting)

	if gotFrom != TaskPlanning || gotTo != TaskExecuting {
		t.Fatalf("expected listener called with planning->executing, got %s->%s", gotFrom, gotTo)
	}
	if gotStep != 2 {
		t.Fatalf("expected snapshot step 2, got %d", gotStep)
	}
}

func TestTaskStateMachine_RecordToolExec(t *testing.T) {
	sm := NewTaskStateMachine(0, testLogger())
	sm.RecordToolExec("shell_exec")
	sm.RecordToolExec("file_read")

	snap := sm.Snapshot()
	if snap.ToolsExecuted != 2 {
		t.Fatalf("expected 2 tool execs, got %d", snap.ToolsExecuted)
	}
	if snap.LastTool != "file_read" {
		t.Fatalf("expected last tool file_read, got %s", snap.LastTool)
	}
}

package core

import (
	"errors"
	"testing"
)

func TestPriority_StringAndParse(t *testing.T) {
	for _, p := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
		got, err := ParsePriority(p.String())
		if err != nil {
			t.Fatalf("ParsePriority(%q) failed: %v", p.String(), err)
		}
		if got != p {
			t.Errorf("ParsePriority(%q) = %v, want %v", p.String(), got, p)
		}
	}

	if _, err := ParsePriority("internal"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParsePriority(internal) error = %v, want ErrInvalidArgument", err)
	}
	if got, _ := ParsePriority(""); got != PriorityNormal {
		t.Errorf("ParsePriority(\"\") = %v, want normal", got)
	}
	if Priority(9).Valid() {
		t.Error("Priority(9).Valid() = true, want false")
	}
}

// TestValidateTask verifies caller-supplied tasks are checked
// Given: tasks with a nil body, an unknown priority and the Internal priority
// When: validateTask is called
// Then: each is rejected with ErrInvalidArgument and a normal task passes
func TestValidateTask(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"valid", NewTask(PriorityLow, noop), false},
		{"nil body", NewTask(PriorityHigh, nil), true},
		{"unknown priority", NewTask(Priority(7), noop), true},
		{"internal", NewTask(PriorityInternal, noop), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTask(tt.task)
			if tt.wantErr && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("validateTask() error = %v, want ErrInvalidArgument", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("validateTask() error = %v, want nil", err)
			}
		})
	}
}

func TestGenerateTaskID_Monotonic(t *testing.T) {
	prev := GenerateTaskID()
	if prev.IsZero() {
		t.Fatal("GenerateTaskID() returned zero id")
	}
	for range 100 {
		next := GenerateTaskID()
		if next.String() <= prev.String() {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestResolveTaskName(t *testing.T) {
	if got := resolveTaskName(NewNamedTask("render", PriorityHigh, noop)); got != "render" {
		t.Errorf("resolveTaskName(named) = %q, want render", got)
	}
	if got := resolveTaskName(NewTask(PriorityHigh, noop)); got == "" {
		t.Error("resolveTaskName(anonymous) returned empty name")
	}
}

package types

import "testing"

func TestEventType_Groups(t *testing.T) {
	types := NotificationTypes()
	if len(types) != 38 {
		t.Fatalf("len(NotificationTypes()) = %d, want 38", len(types))
	}

	seen := make(map[Group]bool)
	for _, et := range types {
		g := et.Group()
		if g == GroupUnknown {
			t.Errorf("%s has no group", et)
		}
		seen[g] = true
	}
	if len(seen) != 11 {
		t.Errorf("distinct groups = %d, want 11", len(seen))
	}
}

func TestParseGroup(t *testing.T) {
	for g := GroupInstruction; g <= GroupViolation; g++ {
		got, ok := ParseGroup(g.String())
		if !ok || got != g {
			t.Errorf("ParseGroup(%q) = %v, %v", g.String(), got, ok)
		}
	}
	if _, ok := ParseGroup("unknown"); ok {
		t.Error("ParseGroup(unknown) should fail")
	}
}

func TestEvent_Properties(t *testing.T) {
	r := NewRegistry()
	tid, _ := r.ByName(PropThreadID)
	name, _ := r.ByName(PropThreadName)

	evt := NewEvent(EventThreadStarted)
	if err := evt.Set(tid, int32(3)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := evt.Set(name, 12); err == nil {
		t.Error("Set() with wrong Go type should fail")
	}
	evt.MustSet(name, "main")

	if id, ok := evt.ThreadID(); !ok || id != 3 {
		t.Errorf("ThreadID() = %d, %v", id, ok)
	}
	if s, ok := evt.Text(PropThreadName); !ok || s != "main" {
		t.Errorf("Text() = %q, %v", s, ok)
	}
	if _, ok := evt.StateID(); ok {
		t.Error("StateID() on event without STATE_ID should be absent")
	}
	if evt.Group() != GroupThread {
		t.Errorf("Group() = %v, want thread", evt.Group())
	}

	clone := evt.Clone()
	clone.Remove(tid)
	if _, ok := evt.Get(tid); !ok {
		t.Error("Remove() on clone affected original")
	}
	if len(evt.Keys()) != 2 || clone.Len() != 1 {
		t.Errorf("Keys() = %d, clone Len() = %d", len(evt.Keys()), clone.Len())
	}
}

func TestEvent_Priority(t *testing.T) {
	evt := NewEvent(EventGCBegin)
	if _, ok := evt.Priority(); ok {
		t.Error("Priority() set on fresh event")
	}
	evt.SetPriority(4)
	if p, ok := evt.Priority(); !ok || p != 4 {
		t.Errorf("Priority() = %d, %v", p, ok)
	}
}

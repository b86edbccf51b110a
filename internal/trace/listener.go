package trace

import (
	"context"

	"github.com/solatis/searchtrace/internal/types"
)

// Listener is the notification surface of a search: one method per event
// kind. Each method takes ownership of evt and sets its type to the kind
// the method names; a nil evt records a kind without properties.
type Listener interface {
	// Notify records evt according to its own type.
	Notify(ctx context.Context, evt *types.Event) error

	// instruction
	ExecuteInstruction(ctx context.Context, evt *types.Event) error
	InstructionExecuted(ctx context.Context, evt *types.Event) error

	// thread
	ThreadStarted(ctx context.Context, evt *types.Event) error
	ThreadBlocked(ctx context.Context, evt *types.Event) error
	ThreadWaiting(ctx context.Context, evt *types.Event) error
	ThreadNotified(ctx context.Context, evt *types.Event) error
	ThreadInterrupted(ctx context.Context, evt *types.Event) error
	ThreadTerminated(ctx context.Context, evt *types.Event) error
	ThreadScheduled(ctx context.Context, evt *types.Event) error

	// classInfo
	ClassLoaded(ctx context.Context, evt *types.Event) error

	// method
	MethodEntered(ctx context.Context, evt *types.Event) error
	MethodExited(ctx context.Context, evt *types.Event) error

	// object
	ObjectCreated(ctx context.Context, evt *types.Event) error
	ObjectReleased(ctx context.Context, evt *types.Event) error
	ObjectLocked(ctx context.Context, evt *types.Event) error
	ObjectUnlocked(ctx context.Context, evt *types.Event) error
	ObjectWait(ctx context.Context, evt *types.Event) error
	ObjectNotify(ctx context.Context, evt *types.Event) error
	ObjectNotifyAll(ctx context.Context, evt *types.Event) error

	// gc
	GCBegin(ctx context.Context, evt *types.Event) error
	GCEnd(ctx context.Context, evt *types.Event) error

	// exception
	ExceptionThrown(ctx context.Context, evt *types.Event) error
	ExceptionBailout(ctx context.Context, evt *types.Event) error
	ExceptionHandled(ctx context.Context, evt *types.Event) error

	// choiceGenerator
	ChoiceGeneratorRegistered(ctx context.Context, evt *types.Event) error
	ChoiceGeneratorSet(ctx context.Context, evt *types.Event) error
	ChoiceGeneratorAdvanced(ctx context.Context, evt *types.Event) error
	ChoiceGeneratorProcessed(ctx context.Context, evt *types.Event) error

	// search
	SearchStarted(ctx context.Context, evt *types.Event) error
	SearchFinished(ctx context.Context, evt *types.Event) error
	SearchConstraintHit(ctx context.Context, evt *types.Event) error

	// state
	StateAdvanced(ctx context.Context, evt *types.Event) error
	StateProcessed(ctx context.Context, evt *types.Event) error
	StateBacktracked(ctx context.Context, evt *types.Event) error
	StateRestored(ctx context.Context, evt *types.Event) error
	StateStored(ctx context.Context, evt *types.Event) error
	StatePurged(ctx context.Context, evt *types.Event) error

	// violation
	PropertyViolated(ctx context.Context, evt *types.Event) error
}

var _ Listener = (*Storer)(nil)

// typed stamps kind onto evt, allocating an empty event for nil.
func typed(evt *types.Event, kind types.EventType) *types.Event {
	if evt == nil {
		return types.NewEvent(kind)
	}
	evt.Type = kind
	return evt
}

func (s *Storer) ExecuteInstruction(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventExecuteInstruction))
}

func (s *Storer) InstructionExecuted(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventInstructionExecuted))
}

func (s *Storer) ThreadStarted(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventThreadStarted))
}

func (s *Storer) ThreadBlocked(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventThreadBlocked))
}

func (s *Storer) ThreadWaiting(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventThreadWaiting))
}

func (s *Storer) ThreadNotified(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventThreadNotified))
}

func (s *Storer) ThreadInterrupted(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventThreadInterrupted))
}

func (s *Storer) ThreadTerminated(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventThreadTerminated))
}

func (s *Storer) ThreadScheduled(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventThreadScheduled))
}

func (s *Storer) ClassLoaded(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventClassLoaded))
}

func (s *Storer) MethodEntered(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventMethodEntered))
}

func (s *Storer) MethodExited(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventMethodExited))
}

func (s *Storer) ObjectCreated(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventObjectCreated))
}

func (s *Storer) ObjectReleased(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventObjectReleased))
}

func (s *Storer) ObjectLocked(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventObjectLocked))
}

func (s *Storer) ObjectUnlocked(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventObjectUnlocked))
}

func (s *Storer) ObjectWait(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventObjectWait))
}

func (s *Storer) ObjectNotify(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventObjectNotify))
}

func (s *Storer) ObjectNotifyAll(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventObjectNotifyAll))
}

func (s *Storer) GCBegin(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventGCBegin))
}

func (s *Storer) GCEnd(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventGCEnd))
}

func (s *Storer) ExceptionThrown(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventExceptionThrown))
}

func (s *Storer) ExceptionBailout(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventExceptionBailout))
}

func (s *Storer) ExceptionHandled(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventExceptionHandled))
}

func (s *Storer) ChoiceGeneratorRegistered(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventChoiceGeneratorRegistered))
}

func (s *Storer) ChoiceGeneratorSet(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventChoiceGeneratorSet))
}

func (s *Storer) ChoiceGeneratorAdvanced(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventChoiceGeneratorAdvanced))
}

func (s *Storer) ChoiceGeneratorProcessed(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventChoiceGeneratorProcessed))
}

func (s *Storer) SearchStarted(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventSearchStarted))
}

func (s *Storer) SearchFinished(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventSearchFinished))
}

func (s *Storer) SearchConstraintHit(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventSearchConstraintHit))
}

func (s *Storer) StateAdvanced(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventStateAdvanced))
}

func (s *Storer) StateProcessed(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventStateProcessed))
}

func (s *Storer) StateBacktracked(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventStateBacktracked))
}

func (s *Storer) StateRestored(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventStateRestored))
}

func (s *Storer) StateStored(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventStateStored))
}

func (s *Storer) StatePurged(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventStatePurged))
}

func (s *Storer) PropertyViolated(ctx context.Context, evt *types.Event) error {
	return s.Notify(ctx, typed(evt, types.EventPropertyViolated))
}

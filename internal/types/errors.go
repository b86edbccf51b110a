package types

import "errors"

// Sentinel errors for searchtrace operations.
var (
	// ErrUnknownBackend indicates a backend name with no registered constructor.
	ErrUnknownBackend = errors.New("unknown graph backend")

	// ErrNoSuchStateID indicates a restore targeted a state id absent from the tree.
	ErrNoSuchStateID = errors.New("no such state id")

	// ErrCommitFailed indicates the backing transaction could not be committed.
	ErrCommitFailed = errors.New("trace commit failed")

	// ErrRunAborted indicates an earlier fatal failure ended the run.
	ErrRunAborted = errors.New("trace run aborted")

	// ErrNotRecording indicates a notification outside searchStarted/searchFinished.
	ErrNotRecording = errors.New("trace storer is not recording")

	// ErrNoTrace indicates a query against a graph holding no recorded run.
	ErrNoTrace = errors.New("no recorded trace")

	// ErrNodeNotFound indicates a graph handle that does not exist.
	ErrNodeNotFound = errors.New("graph node not found")

	// ErrEdgeNotFound indicates removal of an edge that does not exist.
	ErrEdgeNotFound = errors.New("graph edge not found")

	// ErrPropertyTypeMismatch indicates a name re-interned with a different type.
	ErrPropertyTypeMismatch = errors.New("property already registered with a different type")

	// ErrPropertyIDConflict indicates an adopted key whose id is taken by another name.
	ErrPropertyIDConflict = errors.New("property id already registered")

	// ErrInvalidPropertyName indicates an empty or overlong property name.
	ErrInvalidPropertyName = errors.New("invalid property name")

	// ErrInvalidValue indicates a value that does not match its key's type tag.
	ErrInvalidValue = errors.New("value does not match property type")

	// ErrUnknownEventType indicates an event kind outside the known set.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrPredicateFailed wraps a predicate error that aborted a query.
	ErrPredicateFailed = errors.New("trace predicate failed")

	// ErrPathTooDeep indicates a filter field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrTooManyWildcards indicates a filter field path exceeds MaxNestedWildcards.
	ErrTooManyWildcards = errors.New("field path has too many wildcards")

	// ErrWildcardInFieldRef indicates a field reference path containing a wildcard.
	ErrWildcardInFieldRef = errors.New("field reference cannot contain wildcards")

	// ErrTooManyInValues indicates an IN operator exceeds MaxInOperatorValues.
	ErrTooManyInValues = errors.New("IN operator has too many values")

	// ErrEmptyExpression indicates a filter group with no conditions.
	ErrEmptyExpression = errors.New("filter expression is empty")

	// ErrInvalidOperator indicates an unknown operator.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")
)

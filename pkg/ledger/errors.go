package ledger

import "errors"

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrConflict is returned by TransitionRun when the current status does
	// not match the expected "from" status — the compare-and-set lost a race.
	ErrConflict = errors.New("ledger: conflicting state transition")
	// ErrNotFound is returned when a referenced campaign, run, or result does
	// not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrDuplicate is returned by InsertResult when a Result already exists
	// for the run (write-once semantics).
	ErrDuplicate = errors.New("ledger: duplicate write")
)

// ErrorKind is one of the taxonomy labels from the error handling design;
// stored on PlannedRun.error_kind, never used for Go control flow beyond
// string comparison/grouping.
type ErrorKind string

// Error taxonomy. Kinds, not Go error types — see package ledger doc.
const (
	ErrorKindValidation      ErrorKind = "validation"
	ErrorKindAuth            ErrorKind = "auth"
	ErrorKindConflict        ErrorKind = "conflict"
	ErrorKindNotFound        ErrorKind = "not_found"
	ErrorKindTransientRemote ErrorKind = "transient_remote"
	ErrorKindIncompatible    ErrorKind = "incompatible"
	ErrorKindResourceExceed  ErrorKind = "resource_exceeded"
	ErrorKindEngineError     ErrorKind = "engine_error"
	ErrorKindWatchdog        ErrorKind = "watchdog"
	ErrorKindFatal           ErrorKind = "fatal"
)

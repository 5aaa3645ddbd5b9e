package kansoku

import "time"

// Sequence declares a start/end event family that becomes journal entries,
// in addition to the built-in iteration and quality gate families. Starts
// pair with the nearest later end carrying the same key; unmatched starts
// become running entries.
type Sequence struct {
	// Name identifies the sequence in logs.
	Name string
	// StartType and EndType are the event types that open and close it.
	StartType string
	EndType   string
	// KeyField is the data field that correlates a start with its end.
	// Empty pairs by type alone.
	KeyField string
	// Kind is the entry kind of a completed pair. RunningKind defaults to
	// Kind + "_running".
	Kind        string
	RunningKind string
	// StatusField is read from the end event; "success" and "failed" are
	// recognised along with SuccessValues. Defaults to "status".
	StatusField   string
	SuccessValues []string
	// Ceiling bounds the gap between start and end. Zero means unbounded.
	Ceiling time.Duration
}

// ViewSummary is what a ViewHook sees after every poll.
type ViewSummary struct {
	GeneratedAt time.Time
	Objective   string
	State       string
	EventCount  int
	Entries     int
	Running     int
	Operations  int
	Dropped     int
	Corrupted   int
	Stale       bool
}

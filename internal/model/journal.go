package model

import (
	"strconv"

	"github.com/google/uuid"
)

// EntryKind names the family a journal entry was derived from.
type EntryKind string

const (
	KindAgentWork        EntryKind = "agent_work"
	KindAgentInProgress  EntryKind = "agent_in_progress"
	KindIteration        EntryKind = "iteration"
	KindIterationRunning EntryKind = "iteration_running"
	KindQualityGate      EntryKind = "quality_gate"
	KindQualityGateRun   EntryKind = "quality_gate_running"
	KindSessionStart     EntryKind = "session_start"
	KindSessionComplete  EntryKind = "session_complete"
)

var entryKinds = map[EntryKind]bool{
	KindAgentWork: true, KindAgentInProgress: true,
	KindIteration: true, KindIterationRunning: true,
	KindQualityGate: true, KindQualityGateRun: true,
	KindSessionStart: true, KindSessionComplete: true,
}

// Known reports whether k is one of the built-in kinds. Custom sequences
// may produce kinds outside this set.
func (k EntryKind) Known() bool {
	return entryKinds[k]
}

// OperationStatus is the outcome of a paired operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "success"
	StatusFailed  OperationStatus = "failed"
	StatusPending OperationStatus = "pending"
)

// PairedOperation is one start event matched (or not) to its completion.
// End is nil while the operation is still open.
type PairedOperation struct {
	Kind       string           `json:"kind"`
	Key        string           `json:"key"`
	Start      NormalizedEvent  `json:"start"`
	End        *NormalizedEvent `json:"end"`
	DurationMs *int64           `json:"duration_ms"`
	Status     OperationStatus  `json:"status"`
}

// Matched reports whether a completion was found.
func (p PairedOperation) Matched() bool {
	return p.End != nil
}

// JournalEntry is one narratable unit of the derived timeline.
type JournalEntry struct {
	ID                uuid.UUID         `json:"id"`
	Kind              EntryKind         `json:"kind"`
	Icon              string            `json:"icon"`
	Title             string            `json:"title"`
	Start             Instant           `json:"start"`
	End               Instant           `json:"end"`
	Narrative         string            `json:"narrative"`
	Agent             string            `json:"agent,omitempty"`
	Metadata          Data              `json:"metadata"`
	RelatedTasks      []Task            `json:"related_tasks"`
	RelatedOperations []PairedOperation `json:"related_operations"`
}

// InProgress reports whether the entry has no end yet.
func (e JournalEntry) InProgress() bool {
	return !e.End.Valid()
}

// entryNamespace scopes journal entry ids.
var entryNamespace = uuid.MustParse("5b0f6f1e-3c1d-4c55-9a4e-6b1f2f0c7a11")

// EntryID derives a stable id from the entry kind, agent and the log
// position of the event that started it, so every poll assigns the same id
// to the same entry.
func EntryID(kind EntryKind, agent string, seq int) uuid.UUID {
	return uuid.NewSHA1(entryNamespace, []byte(string(kind)+"\x00"+agent+"\x00"+strconv.Itoa(seq)))
}

// CorruptionWarning signals that some lines of a log file could not be decoded.
type CorruptionWarning struct {
	File      string `json:"file"`
	Corrupted int    `json:"corrupted"`
	Total     int    `json:"total"`
}

// Valid returns the number of lines that decoded.
func (w CorruptionWarning) Valid() int {
	return w.Total - w.Corrupted
}

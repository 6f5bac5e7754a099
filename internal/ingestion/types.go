// Package ingestion publishes every eligible catalog entry to the messaging
// platform once, recording the returned file reference so later runs and
// searches can reuse it.
package ingestion

import (
	"fmt"
	"time"
)

// Stage names the step of an entry's ingestion that failed.
type Stage string

const (
	StageLookup    Stage = "lookup"
	StageDownload  Stage = "download"
	StageTransform Stage = "transform"
	StageUpload    Stage = "upload"
	StageRecord    Stage = "record"
)

// StageError is the error a run aborts with. It identifies the entry and the
// stage so the run can be diagnosed and resumed by hand.
type StageError struct {
	Ref   string
	ID    string
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ingesting emote %s (%s): %s: %v", e.ID, e.Ref, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Summary reports what a run did. On failure it covers the entries handled
// before the failing one.
type Summary struct {
	Eligible  int           `json:"eligible"`
	Published int           `json:"published"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration_ns"`
}

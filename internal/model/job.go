package model

import "time"

// Job represents one background-removal request and its lifecycle. The
// controller owns the authoritative copy; everything handed across the
// dispatch boundary is a value snapshot.
type Job struct {
	ID          string     `json:"id"`
	Target      string     `json:"target"`
	Mode        Mode       `json:"mode"`
	Model       string     `json:"model"`
	State       JobState   `json:"state"`
	Error       *JobError  `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ProgressEvent is delivered from the worker goroutine to the dispatch
// loop. The UI side never mutates it; messages travel as keys plus
// parameters so the receiving layer can localize.
type ProgressEvent struct {
	JobID      string            `json:"jobId"`
	State      JobState          `json:"state"`
	MessageKey string            `json:"messageKey"`
	Params     map[string]string `json:"params,omitempty"`
	At         time.Time         `json:"at"`
}

// IntegrationRef points at what the integrator produced: a layer file to
// import into the open image, or a standalone image file.
type IntegrationRef struct {
	Kind      RefKind `json:"kind"`
	Path      string  `json:"path"`
	LayerName string  `json:"layerName,omitempty"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// TerminalResult is the single end-of-job event. RemoteCompleted
// distinguishes "nothing happened, safe to retry" from "the remote work
// finished but the result could not be applied" — in the latter case the
// API cost was incurred even though the job reads as failed.
type TerminalResult struct {
	Job             Job             `json:"job"`
	State           JobState        `json:"state"`
	Error           *JobError       `json:"error,omitempty"`
	Ref             *IntegrationRef `json:"ref,omitempty"`
	RemoteCompleted bool            `json:"remoteCompleted"`
}

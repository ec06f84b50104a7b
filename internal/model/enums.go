package model

// Job states. Transitions are forward-only; a job reaches exactly one
// terminal state.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateSubmitted JobState = "submitted"
	JobStatePolling   JobState = "polling"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions follow this state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// Result modes
type Mode string

const (
	ModeCreateLayer Mode = "create_layer"
	ModeCreateFile  Mode = "create_file"
)

var ValidModes = []Mode{ModeCreateLayer, ModeCreateFile}

func (m Mode) Valid() bool {
	for _, v := range ValidModes {
		if m == v {
			return true
		}
	}
	return false
}

// Error kinds
type ErrorKind string

const (
	ErrKindAuth        ErrorKind = "AUTH_ERROR"
	ErrKindPayload     ErrorKind = "PAYLOAD_ERROR"
	ErrKindNetwork     ErrorKind = "NETWORK_ERROR"
	ErrKindTimeout     ErrorKind = "TIMEOUT"
	ErrKindRemote      ErrorKind = "REMOTE_ERROR"
	ErrKindIntegration ErrorKind = "INTEGRATION_ERROR"
)

// Retriable reports whether a fresh start may succeed without new user
// input. Auth and payload failures need a corrected key or image first.
func (k ErrorKind) Retriable() bool {
	switch k {
	case ErrKindNetwork, ErrKindTimeout, ErrKindRemote:
		return true
	}
	return false
}

// Integration result kinds
type RefKind string

const (
	RefKindLayer RefKind = "layer"
	RefKindImage RefKind = "image"
)

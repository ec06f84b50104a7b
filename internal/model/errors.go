package model

import (
	"errors"
	"fmt"
)

// JobError is the typed failure attached to a job's terminal state. The
// message key and params are localized by the UI layer, never here.
type JobError struct {
	Kind       ErrorKind         `json:"kind"`
	MessageKey string            `json:"messageKey"`
	Params     map[string]string `json:"params,omitempty"`
	Err        error             `json:"-"`
}

func NewJobError(kind ErrorKind, messageKey string, params map[string]string) *JobError {
	return &JobError{Kind: kind, MessageKey: messageKey, Params: params}
}

func WrapJobError(kind ErrorKind, messageKey string, err error) *JobError {
	return &JobError{Kind: kind, MessageKey: messageKey, Err: err}
}

func (e *JobError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.MessageKey)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// AsJobError extracts a *JobError from an error chain, falling back to a
// network-kind wrapper so transport faults never cross the dispatch
// boundary untyped.
func AsJobError(err error, fallbackKey string) *JobError {
	var je *JobError
	if errors.As(err, &je) {
		return je
	}
	return WrapJobError(ErrKindNetwork, fallbackKey, err)
}

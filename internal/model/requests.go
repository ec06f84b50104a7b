package model

import "time"

// JobStartRequest starts a background-removal job. Image is base64; the
// dialog shim exports the active layer as PNG before posting. APIKey
// overrides the stored credential for this request only.
type JobStartRequest struct {
	Target string `json:"target" validate:"required"`
	Mode   Mode   `json:"mode" validate:"required,oneof=create_layer create_file"`
	Image  string `json:"image" validate:"required,base64"`
	APIKey string `json:"apiKey,omitempty"`
	Model  string `json:"model,omitempty"`
}

type JobStartResponse struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

type JobStatusResponse struct {
	JobID       string     `json:"jobId"`
	Target      string     `json:"target"`
	Mode        Mode       `json:"mode"`
	State       JobState   `json:"state"`
	Error       *JobError  `json:"error,omitempty"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type JobCancelResponse struct {
	JobID string   `json:"jobId"`
	State JobState `json:"state"`
}

// SettingsResponse never carries the raw key; the UI only needs to know
// whether one is stored and enough of a prefix to recognize it.
type SettingsResponse struct {
	APIKeySet    bool   `json:"apiKeySet"`
	APIKeyHint   string `json:"apiKeyHint,omitempty"`
	Mode         Mode   `json:"mode"`
	Model        string `json:"model"`
	ModelDisplay string `json:"modelDisplay"`
}

type SettingsUpdateRequest struct {
	APIKey *string `json:"apiKey,omitempty"`
	Mode   *Mode   `json:"mode,omitempty"`
	Model  *string `json:"model,omitempty"`
}

type SettingsUpdateResponse struct {
	Persisted bool `json:"persisted"`
}

type HistoryEntry struct {
	JobID      string    `json:"jobId"`
	Target     string    `json:"target"`
	Mode       Mode      `json:"mode"`
	State      JobState  `json:"state"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeTerminal = "terminal"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage carries one progress event to the dialog shim. The
// localized text is rendered server-side from the event's message key so
// the shim can show it directly.
type WSProgressMessage struct {
	Type       string            `json:"type"`
	JobID      string            `json:"jobId"`
	State      JobState          `json:"state"`
	MessageKey string            `json:"messageKey"`
	Params     map[string]string `json:"params,omitempty"`
	Message    string            `json:"message"`
}

// WSTerminalMessage is sent exactly once per job, after every progress
// message for that job.
type WSTerminalMessage struct {
	Type            string          `json:"type"`
	JobID           string          `json:"jobId"`
	State           JobState        `json:"state"`
	Error           *WSError        `json:"error,omitempty"`
	Ref             *IntegrationRef `json:"ref,omitempty"`
	RemoteCompleted bool            `json:"remoteCompleted"`
	Message         string          `json:"message"`
}

// WSError represents error details
type WSError struct {
	Kind       ErrorKind `json:"kind"`
	MessageKey string    `json:"messageKey"`
	Message    string    `json:"message"`
}

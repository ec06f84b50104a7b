package i18n

// Message keys emitted by the job core. The core never produces final
// text; handlers and the CLI localize with Localize.
const (
	KeyProgressAccepted   = "progress.accepted"
	KeyProgressUploading  = "progress.uploading"
	KeyProgressProcessing = "progress.processing"
	KeyProgressWaiting    = "progress.waiting"
	KeyProgressFinalizing = "progress.finalizing"

	KeyDoneLayerCreated = "done.layer_created"
	KeyDoneFileCreated  = "done.file_created"
	KeyCancelled        = "status.cancelled"

	KeyErrMissingAPIKey = "error.missing_api_key"
	KeyErrAuth          = "error.auth"
	KeyErrPayload       = "error.payload"
	KeyErrNetwork       = "error.network"
	KeyErrTimeout       = "error.timeout"
	KeyErrRemote        = "error.remote"
	KeyErrIntegration   = "error.integration"
)

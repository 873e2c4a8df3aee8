package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldHandle    = "handle"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Audio fields
	FieldDevice     = "device"
	FieldSampleRate = "sample_rate"
	FieldChannels   = "channels"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath = "path"
	FieldURL  = "url"

	// Size / timing fields
	FieldBytes      = "bytes"
	FieldDurationMS = "duration_ms"
)

// Canonical event tags emitted over the life of a session.
const (
	EventStartup        = "startup"
	EventNetworkReady   = "network_ready"
	EventRecordingStart = "recording_start"
	EventRecordingStop  = "recording_stop"
	EventUploadOK       = "upload_ok"
	EventUploadFail     = "upload_fail"
	EventServerResponse = "server_response"
	EventPlaybackError  = "playback_error"
	EventReady          = "ready"
	EventShutdown       = "shutdown"
)

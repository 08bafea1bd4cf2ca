package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the content job ID
	FieldJobID = "job_id"

	// FieldChannelID is the publishing channel ID
	FieldChannelID = "channel_id"

	// FieldTrigger is the automation trigger kind (daily, upload_check)
	FieldTrigger = "trigger"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Metric fields, used for aggregation and alerting.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldStage      = "stage"
)

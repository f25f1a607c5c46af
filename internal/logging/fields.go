package logging

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Relay
	FieldClientID    = "client_id"
	FieldRoomID      = "room_id"
	FieldEvent       = "event"
	FieldViewerCount = "viewer_count"
	FieldCodec       = "codec"

	FieldService = "service"
)

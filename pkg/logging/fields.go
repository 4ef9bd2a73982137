package logging

// Field names for structured logging.
const (
	FieldComponent  = "component"
	FieldLoanID     = "loan_id"
	FieldRecordID   = "record_id"
	FieldIndex      = "index"
	FieldField      = "field"
	FieldValue      = "value"
	FieldDropped    = "dropped"
	FieldError      = "error"
	FieldCacheHit   = "cache_hit"
	FieldEntries    = "entries"
	FieldEvents     = "events"
	FieldDuration   = "duration_ms"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
)

// Component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentPaydown = "paydown"
	ComponentSeed    = "seed"
)

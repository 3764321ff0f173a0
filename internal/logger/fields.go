package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields carried on the context through a pipeline run.
const (
	// FieldRunID identifies one CLI invocation.
	FieldRunID = "run_id"

	// FieldStage is the pipeline stage: collect, analyze, publish.
	FieldStage = "stage"

	// FieldKeyword is the search keyword being processed.
	FieldKeyword = "keyword"

	// FieldFilename is the raw image filename being processed.
	FieldFilename = "filename"
)

// Metric fields used on summary lines.
const (
	FieldCount      = "count"
	FieldDurationMs = "duration_ms"
	FieldStatus     = "status"
)

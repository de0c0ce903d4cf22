package model

import "time"

// StyleParams are the caller-supplied style knobs for an edit. Opaque to the
// metering core; they only influence the prompt and the storage path.
type StyleParams struct {
	Preset string
	Shade  string
	Length string
}

// InlineImage carries raw image bytes plus their MIME type.
type InlineImage struct {
	Data     []byte
	MimeType string
}

// GenerationAuditEvent is an append-only record of one attempted generation.
// Observability only; gating decisions never read it back.
type GenerationAuditEvent struct {
	ID             int64     `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Kind           Budget    `db:"kind" json:"kind"`
	Preset         string    `db:"preset" json:"preset"`
	Shade          string    `db:"shade" json:"shade"`
	Length         string    `db:"length" json:"length"`
	RequestID      string    `db:"request_id" json:"request_id"`
	OutputMimeType string    `db:"output_mime_type" json:"output_mime_type"`
	StoragePath    string    `db:"storage_path" json:"storage_path"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// GenerationResult is what the orchestrator hands back to the client. URL is
// empty when artifact persistence failed; ImageBase64 is the fallback then.
type GenerationResult struct {
	URL         string
	ImageBase64 string
	MimeType    string
	Budget      Budget
	StoragePath string
}

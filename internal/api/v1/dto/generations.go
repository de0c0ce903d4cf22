package dto

import "time"

// GenerationItemDTO is one audit row with its resolved artifact URL.
type GenerationItemDTO struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	Kind           string    `json:"kind"`
	Preset         string    `json:"preset"`
	Shade          string    `json:"shade"`
	Length         string    `json:"length"`
	RequestID      string    `json:"request_id"`
	OutputMimeType string    `json:"output_mime_type"`
	StoragePath    string    `json:"storage_path"`
	URL            string    `json:"url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type GenerationListResponseDTO struct {
	Items     []GenerationItemDTO `json:"items"`
	RequestID string              `json:"request_id"`
}

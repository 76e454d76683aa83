package worker

// IngestFilePayload is the body of an ingest.file message: a staged upload
// plus the processing options it was submitted with.
type IngestFilePayload struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	MIMEType string `json:"mime_type"`

	ChunkSize   int    `json:"chunk_size,omitempty"`
	OverlapSize int    `json:"overlap_size,omitempty"`
	Model       string `json:"model,omitempty"`

	CorrelationID string `json:"correlation_id"`
}

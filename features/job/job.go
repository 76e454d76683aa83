package job

import (
	"encoding/json"
	"time"
)

// Job is an asynchronous ingestion that ended in error. Payload is the
// original queue message, so a retry republishes it unchanged.
type Job struct {
	ID        string          `json:"id"`
	FileName  string          `json:"file_name"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

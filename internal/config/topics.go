package config

const (
	// TopicIngestFile carries files staged for asynchronous ingestion.
	TopicIngestFile = "ingest.file"

	// ChannelFileWorker is the consumer channel of the file ingestion worker.
	ChannelFileWorker = "file-worker"
)

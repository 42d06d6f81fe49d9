package model

import "time"

// SourceKind describes where a bundle entry came from.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourceURL      SourceKind = "url"
	SourceExisting SourceKind = "existing"
)

// BundleEntry is one ingested source document with its provenance.
// Entries are created on ingestion and updated (superseded flag) when a
// newer same-topic entry arrives; the pipeline never deletes them.
type BundleEntry struct {
	UploadID     string     `json:"upload_id"`
	Name         string     `json:"name"`
	Source       SourceKind `json:"source"`
	Version      string     `json:"version,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`
	TopicKey     string     `json:"topic_key"`
	Superseded   bool       `json:"superseded"`
	ConnectorID  string     `json:"connector_id,omitempty"`
	VectorFileID string     `json:"vector_file_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ConflictKey derives the ledger key for this entry. Two entries sharing a
// topic but differing in conflict key are contradictory versions.
func (e BundleEntry) ConflictKey() string {
	date := ""
	if e.ReleaseDate != nil {
		date = e.ReleaseDate.UTC().Format("2006-01-02")
	}
	return e.TopicKey + ":" + e.Version + ":" + date
}

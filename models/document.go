package models

// MetadataSourceKey is the metadata field holding the originating file name.
const MetadataSourceKey = "source"

// Document is an immutable unit of retrievable content. Documents are created
// by the ingestion job and owned by the vector store; the core only reads them.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Source returns the document's source identifier, or "" when absent.
func (d *Document) Source() string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	return d.Metadata[MetadataSourceKey]
}

// ScoredDocument pairs a document with its distance from the query embedding.
// Convention used throughout this codebase: distance = 1 - cosine similarity,
// so a LOWER distance means a MORE relevant document. The vector store is the
// single place the metric is computed; everything downstream only compares.
type ScoredDocument struct {
	Document
	Distance float64
}

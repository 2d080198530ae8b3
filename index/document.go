// Package index provides the embedding ladder and the HNSW-backed document
// store used for semantic task routing.
package index

import (
	"crypto/sha256"
	"fmt"
)

// DocType tags what a stored document represents.
type DocType string

const (
	DocResume         DocType = "resume"
	DocJobDescription DocType = "job_description"
	DocTaskLabel      DocType = "task_label"
	DocQueryHistory   DocType = "query_history"
)

// Document is a unit of text kept in the store.
type Document struct {
	ID       string
	Text     string
	Type     DocType
	Metadata map[string]string
}

// Match is a query result with its cosine distance to the query.
type Match struct {
	Document
	Distance float32
}

// ContentID derives a stable document id from the document type and text,
// so re-ingesting identical text overwrites instead of appending.
func ContentID(t DocType, text string) string {
	return string(t) + "-" + hashText(text)
}

func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}

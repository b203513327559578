package domain

// Document is a single retrieved passage as seen by the reflection graph.
// Source identifies where the passage came from (file path or document key);
// Score is the similarity score assigned by the retrieval backend.
type Document struct {
	ID     string
	Source string
	Text   string
	Score  float32
}

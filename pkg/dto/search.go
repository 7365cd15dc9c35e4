package dto

// SearchRequest looks up similar faces in a collection. Either a raw
// embedding or a base64-encoded image may be supplied; with an image,
// every detected face is searched.
type SearchRequest struct {
	Collection string    `json:"collection,omitempty"`
	GroupID    string    `json:"group_id,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	ImageB64   string    `json:"image_b64,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

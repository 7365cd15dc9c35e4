package dto

// ClusterRequest submits a clustering run for one group. Confidence is a
// similarity threshold: eps = 1 - confidence.
type ClusterRequest struct {
	GroupID    string   `json:"group_id" binding:"required"`
	Collection string   `json:"collection,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

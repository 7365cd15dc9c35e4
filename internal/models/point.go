package models

import (
	"time"

	"github.com/google/uuid"
)

// FacialArea is the bounding region of a detected face in source-image
// pixel coordinates.
type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FacePoint is one detected face persisted in the vector store.
// GroupID is immutable after creation; PersonID is empty until a
// clustering run assigns it and is overwritten wholesale by later runs.
type FacePoint struct {
	ID                  uuid.UUID  `json:"id"`
	Embedding           []float32  `json:"-"`
	GroupID             string     `json:"group_id"`
	ImagePath           string     `json:"image_path"`
	FaceIndex           int        `json:"face_index"`
	DetectionConfidence float32    `json:"detection_confidence"`
	FacialArea          FacialArea `json:"facial_area"`
	ThumbnailPath       string     `json:"thumbnail_path,omitempty"`
	Timestamp           time.Time  `json:"timestamp"`
	PersonID            string     `json:"person_id,omitempty"`
}

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "face_embeddings", false},
		{"leading underscore", "_private", false},
		{"digits", "faces2024", false},
		{"single letter", "f", false},
		{"empty", "", true},
		{"leading digit", "1faces", true},
		{"hyphen", "face-embeddings", true},
		{"spaces", "face embeddings", true},
		{"sql injection", "faces; DROP TABLE users--", true},
		{"quoted", `faces"`, true},
		{"too long", "a_very_long_collection_name_that_goes_on_and_on_and_exceeds_limits", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package domain

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ConceptReviewPayload is shown to the approver at the concept-review gate.
type ConceptReviewPayload struct {
	Title     string   `json:"title,omitempty"`
	SourceURL string   `json:"source_url,omitempty"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Topics    []string `json:"topics,omitempty"`
}

// ArtifactReviewPayload is shown to the approver at the artifact-review gate.
type ArtifactReviewPayload struct {
	Title        string `json:"title,omitempty"`
	Format       string `json:"format"`
	Content      string `json:"content"`
	Bytes        int    `json:"bytes"`
	WordCount    int    `json:"word_count,omitempty"`
	SectionCount int    `json:"section_count,omitempty"`
}

// PayloadMap converts a typed gate payload into the generic form held by
// SuspensionRecord.Payload. The result has the same shape a store returns
// after a round trip: numbers are float64 and slices are []any.
func PayloadMap(payload any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gate payload: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("gate payload is not an object: %w", err)
	}
	return m, nil
}

// DecodePayload decodes the record's payload into out, typically a
// *ConceptReviewPayload or *ArtifactReviewPayload matching GateID.
func (r *SuspensionRecord) DecodePayload(out any) error {
	data, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", r.GateID, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.GateID, err)
	}
	return nil
}

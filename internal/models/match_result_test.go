package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidenceForCoversEveryLabel(t *testing.T) {
	cases := []struct {
		name       string
		label      Recommendation
		confidence float64
		positive   bool
	}{
		{"strong hire", RecommendationStrongHire, 0.95, true},
		{"hire", RecommendationHire, 0.90, true},
		{"interview", RecommendationInterview, 0.80, true},
		{"proceed to interview", RecommendationProceedToInterview, 0.75, true},
		{"reject", RecommendationReject, 0.10, false},
		{"unknown label", Recommendation("MAYBE"), 0.0, false},
		{"empty label", Recommendation(""), 0.0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.confidence, ConfidenceFor(tc.label), 0.0001)
			assert.Equal(t, tc.positive, tc.label.Positive())
		})
	}
}

package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zeroverse/zeroverse/internal/models"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name    string
		verdict Verdict
		status  models.Status
		persist bool
	}{
		{"approve publishes immediately", VerdictApprove, models.StatusApproved, true},
		{"flag goes to review queue", VerdictFlag, models.StatusPending, true},
		{"reject persists nothing", VerdictReject, "", false},
		{"unknown verdict is treated like flag", Verdict("MAYBE"), models.StatusPending, true},
		{"empty verdict is treated like flag", Verdict(""), models.StatusPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, persist := Decide(tt.verdict)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.persist, persist)
		})
	}
}

package moderation

import (
	"context"
	"errors"

	"github.com/zeroverse/zeroverse/internal/models"
)

// Verdict is the three-way classification outcome for a piece of text.
type Verdict string

const (
	VerdictApprove Verdict = "APPROVE"
	VerdictFlag    Verdict = "FLAG"
	VerdictReject  Verdict = "REJECT"
)

// Decision is what a classifier returns for a confession.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// ErrUnavailable means the classifier itself failed (network, credentials,
// 5xx). Callers must surface this as a retryable server error, never as a
// content rejection.
var ErrUnavailable = errors.New("moderation service unavailable")

// Classifier turns confession text into a Decision. Implementations only
// return an error for genuine transport or availability failures; a
// malformed-but-present response degrades to a FLAG decision instead.
type Classifier interface {
	Classify(ctx context.Context, title, content string) (Decision, error)
}

// Decide maps a verdict onto the stored post status. The second return
// reports whether the post may be persisted at all: on REJECT nothing is
// written and creation or edit stops before any store mutation.
//
// Anything that is not an explicit APPROVE or REJECT lands in the review
// queue, so a confused classifier can never auto-publish.
func Decide(v Verdict) (models.Status, bool) {
	switch v {
	case VerdictApprove:
		return models.StatusApproved, true
	case VerdictReject:
		return "", false
	default:
		return models.StatusPending, true
	}
}

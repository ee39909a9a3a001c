// Package confession implements the AI-moderated confession pipeline:
// validate, classify, decide, persist. Both creation and edit run through
// the same sequence so moderation behavior can never diverge between them.
package confession

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zeroverse/zeroverse/internal/auth"
	"github.com/zeroverse/zeroverse/internal/models"
	"github.com/zeroverse/zeroverse/internal/moderation"
)

// Confessions are always rendered under this alias, regardless of author.
const anonymousAlias = "Anonymous User"

var (
	ErrValidation   = errors.New("title and content are required")
	ErrTitleLength  = errors.New("title cannot be more than 100 characters")
	ErrForbidden    = errors.New("you do not own this confession")
	ErrNotFound     = errors.New("confession not found")
	ErrInvalidState = errors.New("only pending confessions can be approved")
)

// RejectedError means the classifier refused the content. It is a policy
// outcome, not a fault: nothing was persisted and the reason goes back to
// the submitter verbatim.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "confession rejected: " + e.Reason
}

// Service orchestrates confession creation, edit and the admin review queue.
type Service struct {
	db         *gorm.DB
	classifier moderation.Classifier
	log        *zap.Logger
}

func NewService(db *gorm.DB, classifier moderation.Classifier, log *zap.Logger) *Service {
	return &Service{db: db, classifier: classifier, log: log}
}

// Submit runs a new confession through the pipeline. On a REJECT verdict
// nothing is written and the classifier's reason is returned; otherwise the
// confession is stored with the decided status.
func (s *Service) Submit(ctx context.Context, p auth.Principal, title, content string) (*models.Post, error) {
	title, content, err := validateInput(title, content)
	if err != nil {
		return nil, err
	}

	decision, err := s.classifier.Classify(ctx, title, content)
	if err != nil {
		return nil, err
	}

	status, persist := moderation.Decide(decision.Verdict)
	if !persist {
		s.log.Info("confession rejected",
			zap.String("user_id", p.ID),
			zap.String("reason", decision.Reason))
		return nil, &RejectedError{Reason: decision.Reason}
	}

	reason := decision.Reason
	post := models.Post{
		Title:            title,
		Content:          content,
		Category:         models.CategoryConfession,
		UserID:           p.ID,
		Alias:            anonymousAlias,
		Status:           status,
		ModerationReason: &reason,
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("create confession: %w", err)
	}
	return &post, nil
}

// Edit re-runs the pipeline on the new text. The previous status carries no
// weight: an approved confession can drop back to pending, and a rejected
// edit leaves the stored row exactly as it was.
func (s *Service) Edit(ctx context.Context, p auth.Principal, id, title, content string) (*models.Post, error) {
	post, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.UserID != p.ID {
		return nil, ErrForbidden
	}

	title, content, err = validateInput(title, content)
	if err != nil {
		return nil, err
	}

	decision, err := s.classifier.Classify(ctx, title, content)
	if err != nil {
		return nil, err
	}

	status, persist := moderation.Decide(decision.Verdict)
	if !persist {
		s.log.Info("confession edit rejected",
			zap.String("post_id", post.ID),
			zap.String("reason", decision.Reason))
		return nil, &RejectedError{Reason: decision.Reason}
	}

	updates := map[string]any{
		"title":             title,
		"content":           content,
		"status":            status,
		"moderation_reason": decision.Reason,
		"is_edited":         true,
	}
	if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update confession: %w", err)
	}
	return post, nil
}

// Delete removes a confession. The owner may always delete their own; an
// admin may delete anyone's.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	post, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if post.UserID != p.ID && !p.IsAdmin {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Delete(post).Error
}

// ListPending returns the admin review queue, newest first.
func (s *Service) ListPending(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("category = ? AND status = ?", models.CategoryConfession, models.StatusPending).
		Order("created_at desc").
		Find(&posts).Error
	return posts, err
}

// AdminApprove publishes a flagged confession. Only pending rows qualify.
func (s *Service) AdminApprove(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != models.StatusPending {
		return nil, ErrInvalidState
	}
	if err := s.db.WithContext(ctx).Model(post).Update("status", models.StatusApproved).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// AdminReject permanently deletes a confession regardless of status.
func (s *Service) AdminReject(ctx context.Context, id string) error {
	post, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(post).Error
}

// validateInput trims both fields and enforces the title column limit
// before anything reaches the classifier.
func validateInput(title, content string) (string, string, error) {
	title, content = strings.TrimSpace(title), strings.TrimSpace(content)
	if title == "" || content == "" {
		return "", "", ErrValidation
	}
	if len(title) > models.MaxTitleLength {
		return "", "", ErrTitleLength
	}
	return title, content, nil
}

func (s *Service) get(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Where("id = ? AND category = ?", id, models.CategoryConfession).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

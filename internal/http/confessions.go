package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeroverse/zeroverse/internal/confession"
	"github.com/zeroverse/zeroverse/internal/models"
	"github.com/zeroverse/zeroverse/internal/moderation"
)

type confessionInput struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// CreateConfession submits a confession through the moderation pipeline.
func (e *Env) CreateConfession(c *gin.Context) {
	var input confessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and content are required"})
		return
	}

	post, err := e.Confessions.Submit(c.Request.Context(), principalFrom(c), input.Title, input.Content)
	if err != nil {
		e.confessionError(c, err)
		return
	}

	if post.Status == models.StatusPending {
		c.JSON(http.StatusCreated, gin.H{
			"success":    true,
			"message":    "Your confession has been submitted for review",
			"confession": post,
			"status":     post.Status,
			"reason":     post.ModerationReason,
		})
		return
	}

	e.broadcast("new_confession", post)
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Your confession has been posted anonymously!",
		"confession": post,
		"status":     post.Status,
	})
}

// UpdateConfession re-moderates the edited text before accepting it.
func (e *Env) UpdateConfession(c *gin.Context) {
	var input confessionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and content are required"})
		return
	}

	post, err := e.Confessions.Edit(c.Request.Context(), principalFrom(c), c.Param("id"), input.Title, input.Content)
	if err != nil {
		e.confessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"confession": post,
		"status":     post.Status,
	})
}

// DeleteConfession removes the caller's confession (admins may remove any).
func (e *Env) DeleteConfession(c *gin.Context) {
	if err := e.Confessions.Delete(c.Request.Context(), principalFrom(c), c.Param("id")); err != nil {
		e.confessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Confession deleted"})
}

// GetPendingConfessions lists the admin review queue.
func (e *Env) GetPendingConfessions(c *gin.Context) {
	posts, err := e.Confessions.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch pending confessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"count":       len(posts),
		"confessions": posts,
	})
}

// ApproveConfession publishes a pending confession.
func (e *Env) ApproveConfession(c *gin.Context) {
	post, err := e.Confessions.AdminApprove(c.Request.Context(), c.Param("id"))
	if err != nil {
		e.confessionError(c, err)
		return
	}
	e.broadcast("new_confession", post)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Confession approved",
		"confession": post,
	})
}

// RejectConfession deletes a confession from the review surface.
func (e *Env) RejectConfession(c *gin.Context) {
	if err := e.Confessions.AdminReject(c.Request.Context(), c.Param("id")); err != nil {
		e.confessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Confession rejected and deleted"})
}

// confessionError maps the service's error taxonomy onto HTTP statuses. A
// classifier outage is a 503, never a content rejection.
func (e *Env) confessionError(c *gin.Context, err error) {
	var rejected *confession.RejectedError
	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Your confession could not be posted",
			"reason":  rejected.Reason,
			"verdict": moderation.VerdictReject,
		})
	case errors.Is(err, confession.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and content are required"})
	case errors.Is(err, confession.ErrTitleLength):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title cannot be more than 100 characters"})
	case errors.Is(err, confession.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "You do not own this confession"})
	case errors.Is(err, confession.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Confession not found"})
	case errors.Is(err, confession.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Only pending confessions can be approved"})
	case errors.Is(err, moderation.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "AI moderation service unavailable. Please try again later."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to process confession. Please try again."})
	}
}

package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zeroverse/zeroverse/internal/models"
)

var validCategories = map[string]bool{
	models.CategoryGeneral:    true,
	models.CategoryHostel:     true,
	models.CategoryExams:      true,
	models.CategoryGossip:     true,
	models.CategoryPlacements: true,
}

type postInput struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Category string `json:"category"`
}

type commentInput struct {
	Content string `json:"content" binding:"required"`
}

// GetPosts lists approved posts, newest first, optionally filtered by
// category. Pending confessions never show up here.
func (e *Env) GetPosts(c *gin.Context) {
	query := e.DB.Where("status = ?", models.StatusApproved).Order("created_at desc")
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var posts []models.Post
	if err := query.Find(&posts).Error; err != nil {
		e.Log.Error("fetch posts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch posts"})
		return
	}
	if err := e.loadCounts(posts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch posts"})
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPost fetches one post with its comments. Non-approved confessions are
// invisible to everyone but their owner and admins.
func (e *Env) GetPost(c *gin.Context) {
	var post models.Post
	err := e.DB.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("comments.created_at asc")
	}).First(&post, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch post"})
		return
	}

	if post.Status != models.StatusApproved {
		p := principalFrom(c)
		if post.UserID != p.ID && !p.IsAdmin {
			c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
			return
		}
	}

	if err := e.loadPostCounts(&post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch post"})
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost creates a regular post under the caller's alias. Confessions
// have their own moderated endpoint.
func (e *Env) CreatePost(c *gin.Context) {
	var input postInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and content are required"})
		return
	}
	title, content := strings.TrimSpace(input.Title), strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and content are required"})
		return
	}
	if len(title) > models.MaxTitleLength {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title cannot be more than 100 characters"})
		return
	}
	category := input.Category
	if category == "" {
		category = models.CategoryGeneral
	}
	if category == models.CategoryConfession {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Confessions must be submitted via /api/confessions"})
		return
	}
	if !validCategories[category] {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Please specify a valid category"})
		return
	}

	p := principalFrom(c)
	post := models.Post{
		Title:    title,
		Content:  content,
		Category: category,
		UserID:   p.ID,
		Alias:    p.Alias,
		Status:   models.StatusApproved,
	}
	if err := e.DB.Create(&post).Error; err != nil {
		e.Log.Error("create post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create post"})
		return
	}

	e.broadcast("new_post", post)
	c.JSON(http.StatusCreated, post)
}

// UpdatePost edits a regular post; only the owner may edit, and confession
// edits must go through the moderated endpoint instead.
func (e *Env) UpdatePost(c *gin.Context) {
	var input postInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and content are required"})
		return
	}
	title, content := strings.TrimSpace(input.Title), strings.TrimSpace(input.Content)
	if title == "" || content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title and content are required"})
		return
	}

	var post models.Post
	if err := e.DB.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	if post.Category == models.CategoryConfession {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Confessions must be edited via /api/confessions"})
		return
	}
	if post.UserID != principalFrom(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"message": "You can only edit your own posts"})
		return
	}

	updates := map[string]any{"title": title, "content": content, "is_edited": true}
	if err := e.DB.Model(&post).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update post"})
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost removes a post; owner or admin only.
func (e *Env) DeletePost(c *gin.Context) {
	var post models.Post
	if err := e.DB.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	p := principalFrom(c)
	if post.UserID != p.ID && !p.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"message": "You can only delete your own posts"})
		return
	}

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		e.Log.Error("delete post", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete post"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// LikePost toggles the caller's like. Liking clears a previous dislike;
// liking twice removes the like.
func (e *Env) LikePost(c *gin.Context) {
	e.react(c, 1)
}

// DislikePost mirrors LikePost for dislikes.
func (e *Env) DislikePost(c *gin.Context) {
	e.react(c, -1)
}

func (e *Env) react(c *gin.Context, value int) {
	var post models.Post
	if err := e.DB.First(&post, "id = ? AND status = ?", c.Param("id"), models.StatusApproved).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}
	p := principalFrom(c)

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.Where("post_id = ? AND user_id = ?", post.ID, p.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&models.Reaction{PostID: post.ID, UserID: p.ID, Value: value}).Error
		case err != nil:
			return err
		case existing.Value == value:
			return tx.Delete(&existing).Error
		default:
			return tx.Model(&existing).Update("value", value).Error
		}
	})
	if err != nil {
		e.Log.Error("record reaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to process reaction"})
		return
	}

	if err := e.loadPostCounts(&post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to process reaction"})
		return
	}
	payload := gin.H{"id": post.ID, "likes": post.Likes, "dislikes": post.Dislikes}
	e.broadcast("reaction", payload)
	c.JSON(http.StatusOK, payload)
}

// AddComment attaches a comment under the caller's alias.
func (e *Env) AddComment(c *gin.Context) {
	var input commentInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Comment content is required"})
		return
	}

	var post models.Post
	if err := e.DB.First(&post, "id = ? AND status = ?", c.Param("id"), models.StatusApproved).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}

	p := principalFrom(c)
	comment := models.Comment{
		PostID:  post.ID,
		UserID:  p.ID,
		Alias:   p.Alias,
		Content: strings.TrimSpace(input.Content),
	}
	if err := e.DB.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to add comment"})
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// UpdateComment edits the caller's own comment.
func (e *Env) UpdateComment(c *gin.Context) {
	var input commentInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Comment content is required"})
		return
	}

	var comment models.Comment
	if err := e.DB.First(&comment, "id = ? AND post_id = ?", c.Param("commentId"), c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Comment not found"})
		return
	}
	if comment.UserID != principalFrom(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"message": "You can only edit your own comments"})
		return
	}
	if err := e.DB.Model(&comment).Update("content", strings.TrimSpace(input.Content)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update comment"})
		return
	}
	c.JSON(http.StatusOK, comment)
}

// DeleteComment removes a comment; commenter, post owner or admin.
func (e *Env) DeleteComment(c *gin.Context) {
	var comment models.Comment
	if err := e.DB.First(&comment, "id = ? AND post_id = ?", c.Param("commentId"), c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Comment not found"})
		return
	}

	var post models.Post
	if err := e.DB.First(&post, "id = ?", comment.PostID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
		return
	}

	p := principalFrom(c)
	if comment.UserID != p.ID && post.UserID != p.ID && !p.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"message": "You cannot delete this comment"})
		return
	}
	if err := e.DB.Delete(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete comment"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}

// Leaderboard returns the top contributors by likes received.
func (e *Env) Leaderboard(c *gin.Context) {
	var entries []models.LeaderboardEntry
	err := e.DB.Raw(`
		SELECT users.alias AS alias,
		       COUNT(DISTINCT posts.id) AS total_posts,
		       COALESCE(SUM(CASE WHEN reactions.value = 1 THEN 1 ELSE 0 END), 0) AS total_likes
		FROM users
		JOIN posts ON posts.user_id = users.id
		LEFT JOIN reactions ON reactions.post_id = posts.id
		GROUP BY users.id, users.alias
		ORDER BY total_likes DESC, total_posts DESC
		LIMIT 10`).Scan(&entries).Error
	if err != nil {
		e.Log.Error("leaderboard query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch leaderboard"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

package http

import (
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zeroverse/zeroverse/internal/auth"
	"github.com/zeroverse/zeroverse/internal/confession"
	"github.com/zeroverse/zeroverse/internal/mail"
	"github.com/zeroverse/zeroverse/internal/models"
	"github.com/zeroverse/zeroverse/internal/ws"
)

// Env carries the dependencies every handler needs.
type Env struct {
	DB          *gorm.DB
	Hub         *ws.Hub
	Log         *zap.Logger
	Tokens      *auth.Tokens
	Mailer      mail.Sender
	Confessions *confession.Service
	CollegeMail string // email domain accepted at signup, e.g. "nith.ac.in"
}

// WsMessage is the JSON envelope pushed over the live feed.
type WsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (e *Env) broadcast(msgType string, data any) {
	msg, err := json.Marshal(WsMessage{Type: msgType, Data: data})
	if err != nil {
		e.Log.Error("marshal ws message", zap.Error(err))
		return
	}
	select {
	case e.Hub.Broadcast <- msg:
	default:
		// Feed is best-effort; never block a request on it.
	}
}

// loadCounts fills the Likes/Dislikes counters on each post.
func (e *Env) loadCounts(posts []models.Post) error {
	for i := range posts {
		if err := e.loadPostCounts(&posts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) loadPostCounts(post *models.Post) error {
	if err := e.DB.Model(&models.Reaction{}).
		Where("post_id = ? AND value = 1", post.ID).
		Count(&post.Likes).Error; err != nil {
		return err
	}
	return e.DB.Model(&models.Reaction{}).
		Where("post_id = ? AND value = -1", post.ID).
		Count(&post.Dislikes).Error
}

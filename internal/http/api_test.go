package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zeroverse/zeroverse/internal/auth"
	"github.com/zeroverse/zeroverse/internal/confession"
	"github.com/zeroverse/zeroverse/internal/models"
	"github.com/zeroverse/zeroverse/internal/moderation"
	"github.com/zeroverse/zeroverse/internal/ws"
)

type scriptedClassifier struct {
	decision moderation.Decision
	err      error
}

func (s *scriptedClassifier) Classify(ctx context.Context, title, content string) (moderation.Decision, error) {
	return s.decision, s.err
}

type fakeMailer struct {
	lastTo   string
	lastCode string
}

func (f *fakeMailer) SendOTP(to, code string) error {
	f.lastTo, f.lastCode = to, code
	return nil
}

type testAPI struct {
	router     *gin.Engine
	db         *gorm.DB
	env        *Env
	classifier *scriptedClassifier
	mailer     *fakeMailer
	nextIP     int
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Post{}, &models.Reaction{}, &models.Comment{}, &models.EmailOTP{},
	))

	classifier := &scriptedClassifier{}
	mailer := &fakeMailer{}
	hub := ws.NewHub(zap.NewNop())
	go hub.Run()

	env := &Env{
		DB:          db,
		Hub:         hub,
		Log:         zap.NewNop(),
		Tokens:      auth.NewTokens("test-secret", time.Hour),
		Mailer:      mailer,
		Confessions: confession.NewService(db, classifier, zap.NewNop()),
		CollegeMail: "nith.ac.in",
	}

	router := gin.New()
	SetupRoutes(router, env, "*")

	return &testAPI{router: router, db: db, env: env, classifier: classifier, mailer: mailer}
}

// do issues a request from a fresh client IP so the per-IP rate limiter
// never interferes across calls.
func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	a.nextIP++
	req.RemoteAddr = fmt.Sprintf("10.1.%d.%d:5000", a.nextIP/250, a.nextIP%250+1)

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) createUser(t *testing.T, email, alias string, isAdmin bool) (models.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{Email: email, PasswordHash: string(hash), Alias: alias, IsAdmin: isAdmin, Verified: true}
	require.NoError(t, a.db.Create(&user).Error)
	token, err := a.env.Tokens.Generate(auth.Principal{ID: user.ID, Alias: user.Alias, IsAdmin: user.IsAdmin})
	require.NoError(t, err)
	return user, token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestConfessionRequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/api/confessions", "", gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConfessionApprovedAppearsInPublicFeed(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)
	api.classifier.decision = moderation.Decision{Verdict: moderation.VerdictApprove, Reason: "wholesome"}

	w := api.do(t, http.MethodPost, "/api/confessions", token, gin.H{
		"title":   "Lost my charger in hostel block C",
		"content": "if anyone found it pls dm",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "approved", body["status"])

	feed := api.do(t, http.MethodGet, "/api/posts", "", nil)
	require.Equal(t, http.StatusOK, feed.Code)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(feed.Body.Bytes(), &posts))
	require.Len(t, posts, 1)
	assert.Equal(t, "Anonymous User", posts[0].Alias)
}

func TestConfessionFlaggedIsHiddenUntilAdminApproval(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)
	_, adminToken := api.createUser(t, "admin@nith.ac.in", "Brave Fox", true)
	api.classifier.decision = moderation.Decision{Verdict: moderation.VerdictFlag, Reason: "borderline"}

	w := api.do(t, http.MethodPost, "/api/confessions", token, gin.H{"title": "hot take", "content": "venting"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "pending", body["status"])
	confessionID := body["confession"].(map[string]any)["id"].(string)

	// Hidden from the public feed.
	feed := api.do(t, http.MethodGet, "/api/posts", "", nil)
	var posts []models.Post
	require.NoError(t, json.Unmarshal(feed.Body.Bytes(), &posts))
	assert.Empty(t, posts)

	// Review queue is admin-only.
	assert.Equal(t, http.StatusForbidden, api.do(t, http.MethodGet, "/api/confessions/pending", token, nil).Code)

	queue := api.do(t, http.MethodGet, "/api/confessions/pending", adminToken, nil)
	require.Equal(t, http.StatusOK, queue.Code)
	assert.Equal(t, float64(1), decodeBody(t, queue)["count"])

	approve := api.do(t, http.MethodPatch, "/api/confessions/"+confessionID+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, approve.Code)

	// Approving twice is an invalid transition.
	again := api.do(t, http.MethodPatch, "/api/confessions/"+confessionID+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, again.Code)

	feed = api.do(t, http.MethodGet, "/api/posts", "", nil)
	require.NoError(t, json.Unmarshal(feed.Body.Bytes(), &posts))
	assert.Len(t, posts, 1)
}

func TestPendingConfessionVisibleToOwnerAndAdminOnly(t *testing.T) {
	api := newTestAPI(t)
	_, ownerToken := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)
	_, strangerToken := api.createUser(t, "21bcs002@nith.ac.in", "Salty Owl", false)
	_, adminToken := api.createUser(t, "admin@nith.ac.in", "Brave Fox", true)
	api.classifier.decision = moderation.Decision{Verdict: moderation.VerdictFlag, Reason: "borderline"}

	w := api.do(t, http.MethodPost, "/api/confessions", ownerToken, gin.H{"title": "hot take", "content": "venting"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody(t, w)["confession"].(map[string]any)["id"].(string)

	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/posts/"+id, ownerToken, nil).Code)
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/api/posts/"+id, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/posts/"+id, strangerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/posts/"+id, "", nil).Code)
}

func TestConfessionRejectedReturnsReason(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)
	api.classifier.decision = moderation.Decision{Verdict: moderation.VerdictReject, Reason: "threat of violence"}

	w := api.do(t, http.MethodPost, "/api/confessions", token, gin.H{"title": "t", "content": "threat"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "threat of violence", body["reason"])

	var n int64
	require.NoError(t, api.db.Model(&models.Post{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConfessionOutageIsServiceUnavailable(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)
	api.classifier.err = moderation.ErrUnavailable

	w := api.do(t, http.MethodPost, "/api/confessions", token, gin.H{"title": "t", "content": "c"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestConfessionEditByNonOwnerForbidden(t *testing.T) {
	api := newTestAPI(t)
	_, ownerToken := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)
	_, otherToken := api.createUser(t, "21bcs002@nith.ac.in", "Salty Owl", false)
	api.classifier.decision = moderation.Decision{Verdict: moderation.VerdictApprove, Reason: "ok"}

	w := api.do(t, http.MethodPost, "/api/confessions", ownerToken, gin.H{"title": "t", "content": "c"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeBody(t, w)["confession"].(map[string]any)["id"].(string)

	edit := api.do(t, http.MethodPatch, "/api/confessions/"+id, otherToken, gin.H{"title": "x", "content": "y"})
	assert.Equal(t, http.StatusForbidden, edit.Code)
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	api := newTestAPI(t)

	// Non-college email is refused.
	w := api.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": "someone@gmail.com", "password": "a long enough password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/signup", "", gin.H{
		"email": "21bcs010@nith.ac.in", "password": "a long enough password",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "21bcs010@nith.ac.in", api.mailer.lastTo)
	require.Len(t, api.mailer.lastCode, 6)

	// Login before verification is refused.
	w = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "21bcs010@nith.ac.in", "password": "a long enough password",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{
		"email": "21bcs010@nith.ac.in", "code": api.mailer.lastCode,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.NotEmpty(t, body["token"])

	// The code is burned the moment it validates.
	var remaining int64
	require.NoError(t, api.db.Model(&models.EmailOTP{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	// A burned OTP never validates twice.
	w = api.do(t, http.MethodPost, "/api/auth/verify-otp", "", gin.H{
		"email": "21bcs010@nith.ac.in", "code": api.mailer.lastCode,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email": "21bcs010@nith.ac.in", "password": "a long enough password",
	})
	require.Equal(t, http.StatusOK, w.Code)

	token := decodeBody(t, w)["token"].(string)
	profile := api.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	assert.Equal(t, http.StatusOK, profile.Code)
}

func TestPostsCannotUseConfessionCategory(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)

	w := api.do(t, http.MethodPost, "/api/posts", token, gin.H{
		"title": "t", "content": "c", "category": models.CategoryConfession,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReactionToggleAndLeaderboard(t *testing.T) {
	api := newTestAPI(t)
	author, authorToken := api.createUser(t, "21bcs001@nith.ac.in", "Silent Panda", false)
	_, readerToken := api.createUser(t, "21bcs002@nith.ac.in", "Salty Owl", false)

	w := api.do(t, http.MethodPost, "/api/posts", authorToken, gin.H{
		"title": "mess food review", "content": "surprisingly edible today", "category": models.CategoryHostel,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var post models.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &post))
	require.Equal(t, author.ID, func() string {
		var stored models.Post
		require.NoError(t, api.db.First(&stored, "id = ?", post.ID).Error)
		return stored.UserID
	}())

	like := api.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", readerToken, nil)
	require.Equal(t, http.StatusOK, like.Code)
	assert.Equal(t, float64(1), decodeBody(t, like)["likes"])

	// Liking again removes the like.
	like = api.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", readerToken, nil)
	assert.Equal(t, float64(0), decodeBody(t, like)["likes"])

	// A dislike replaces a like.
	api.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", readerToken, nil)
	dislike := api.do(t, http.MethodPut, "/api/posts/"+post.ID+"/dislike", readerToken, nil)
	body := decodeBody(t, dislike)
	assert.Equal(t, float64(0), body["likes"])
	assert.Equal(t, float64(1), body["dislikes"])

	board := api.do(t, http.MethodGet, "/api/posts/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, board.Code)
	var entries []models.LeaderboardEntry
	require.NoError(t, json.Unmarshal(board.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)
	assert.Equal(t, "Silent Panda", entries[0].Alias)
}

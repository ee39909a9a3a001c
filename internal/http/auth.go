package http

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/zeroverse/zeroverse/internal/alias"
	"github.com/zeroverse/zeroverse/internal/auth"
	"github.com/zeroverse/zeroverse/internal/mail"
	"github.com/zeroverse/zeroverse/internal/models"
)

const (
	minPasswordLength = 12
	otpValidity       = 10 * time.Minute
)

var emailLocalPart = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

type signupInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type otpInput struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// collegeEmailOK accepts only institutional addresses.
func (e *Env) collegeEmailOK(email string) bool {
	local, domain, found := strings.Cut(email, "@")
	return found && domain == e.CollegeMail && emailLocalPart.MatchString(local)
}

// Signup registers an unverified account and emails a signup OTP. The
// account cannot log in until the OTP is confirmed.
func (e *Env) Signup(c *gin.Context) {
	var input signupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !e.collegeEmailOK(email) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Please use your college email ID (@" + e.CollegeMail + ")"})
		return
	}
	if len(input.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password must be at least 12 characters"})
		return
	}

	var existing models.User
	if err := e.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create account"})
		return
	}

	// Aliases are unique; roll until we find a free one.
	userAlias := alias.Generate()
	for {
		var taken models.User
		if err := e.DB.Where("alias = ?", userAlias).First(&taken).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		userAlias = alias.Generate()
	}

	user := models.User{Email: email, PasswordHash: string(hash), Alias: userAlias}
	if err := e.DB.Create(&user).Error; err != nil {
		e.Log.Error("create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create account"})
		return
	}

	if err := e.issueOTP(email, models.OTPPurposeSignup); err != nil {
		e.Log.Error("send signup otp", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send verification email. Please try again later."})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created. Check your email for the verification code.",
	})
}

// VerifyOTP confirms the signup code and activates the account, returning a
// token so the client is logged in immediately.
func (e *Env) VerifyOTP(c *gin.Context) {
	var input otpInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and code are required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if !e.consumeOTP(email, input.Code, models.OTPPurposeSignup) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired OTP"})
		return
	}

	var user models.User
	if err := e.DB.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err := e.DB.Model(&user).Update("verified", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to verify account"})
		return
	}

	e.respondWithToken(c, http.StatusOK, "Email verified successfully", &user)
}

// ResendOTP reissues the signup code for an unverified account.
func (e *Env) ResendOTP(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var user models.User
	if err := e.DB.Where("email = ? AND verified = ?", email, false).First(&user).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No pending verification for this email"})
		return
	}
	if err := e.issueOTP(email, models.OTPPurposeSignup); err != nil {
		e.Log.Error("resend otp", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send verification email. Please try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

func (e *Env) Login(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var user models.User
	if err := e.DB.Where("email = ?", email).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}
	if !user.Verified {
		c.JSON(http.StatusForbidden, gin.H{"message": "Please verify your email first"})
		return
	}

	e.respondWithToken(c, http.StatusOK, "Login successful", &user)
}

// ForgotPassword emails a reset code. The response does not reveal whether
// the address exists.
func (e *Env) ForgotPassword(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email is required"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	var user models.User
	if err := e.DB.Where("email = ?", email).First(&user).Error; err == nil {
		if err := e.issueOTP(email, models.OTPPurposeReset); err != nil {
			e.Log.Error("send reset otp", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to send reset email. Please try again later."})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "If that email is registered, a reset code has been sent"})
}

func (e *Env) ResetPassword(c *gin.Context) {
	var input struct {
		Email       string `json:"email" binding:"required"`
		Code        string `json:"code" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email, code and new password are required"})
		return
	}
	if len(input.NewPassword) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password must be at least 12 characters"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if !e.consumeOTP(email, input.Code, models.OTPPurposeReset) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired OTP"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to reset password"})
		return
	}
	if err := e.DB.Model(&models.User{}).Where("email = ?", email).
		Update("password_hash", string(hash)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to reset password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}

// Profile returns the caller's account, posts and contribution stats.
func (e *Env) Profile(c *gin.Context) {
	p := principalFrom(c)

	var user models.User
	if err := e.DB.First(&user, "id = ?", p.ID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	var posts []models.Post
	if err := e.DB.Where("user_id = ?", p.ID).Order("created_at desc").Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch posts"})
		return
	}
	if err := e.loadCounts(posts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch posts"})
		return
	}

	var totalLikes, totalDislikes int64
	for _, post := range posts {
		totalLikes += post.Likes
		totalDislikes += post.Dislikes
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
		"stats": gin.H{
			"totalPosts":    len(posts),
			"totalLikes":    totalLikes,
			"totalDislikes": totalDislikes,
		},
		"posts": posts,
	})
}

func (e *Env) ChangePassword(c *gin.Context) {
	var input struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Current password and new password are required"})
		return
	}
	if len(input.NewPassword) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Password must be at least 12 characters"})
		return
	}

	p := principalFrom(c)
	var user models.User
	if err := e.DB.First(&user, "id = ?", p.ID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.CurrentPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Current password is incorrect"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to change password"})
		return
	}
	if err := e.DB.Model(&user).Update("password_hash", string(hash)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to change password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// DeleteAccount removes the user and everything they wrote.
func (e *Env) DeleteAccount(c *gin.Context) {
	p := principalFrom(c)

	err := e.DB.Transaction(func(tx *gorm.DB) error {
		var postIDs []string
		if err := tx.Model(&models.Post{}).Where("user_id = ?", p.ID).
			Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Reaction{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", p.ID).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", p.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", p.ID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", p.ID).Error
	})
	if err != nil {
		e.Log.Error("delete account", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted successfully"})
}

func (e *Env) respondWithToken(c *gin.Context, status int, message string, user *models.User) {
	token, err := e.Tokens.Generate(auth.Principal{ID: user.ID, Alias: user.Alias, IsAdmin: user.IsAdmin})
	if err != nil {
		e.Log.Error("sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to issue token"})
		return
	}
	c.JSON(status, gin.H{
		"message": message,
		"token":   token,
		"user": gin.H{
			"id":      user.ID,
			"email":   user.Email,
			"alias":   user.Alias,
			"isAdmin": user.IsAdmin,
		},
	})
}

// issueOTP replaces any outstanding code for the address and emails a fresh
// one.
func (e *Env) issueOTP(email, purpose string) error {
	code := mail.GenerateOTP()
	if err := e.DB.Where("email = ? AND purpose = ?", email, purpose).
		Delete(&models.EmailOTP{}).Error; err != nil {
		return err
	}
	otp := models.EmailOTP{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(otpValidity),
	}
	if err := e.DB.Create(&otp).Error; err != nil {
		return err
	}
	return e.Mailer.SendOTP(email, code)
}

// consumeOTP validates and burns a code. A used or expired code never
// validates twice; if the burn itself fails the code is refused rather
// than left reusable.
func (e *Env) consumeOTP(email, code, purpose string) bool {
	var otp models.EmailOTP
	err := e.DB.Where("email = ? AND code = ? AND purpose = ?", email, code, purpose).
		First(&otp).Error
	if err != nil {
		return false
	}
	if err := e.DB.Delete(&otp).Error; err != nil {
		e.Log.Error("burn otp", zap.Error(err))
		return false
	}
	return time.Now().Before(otp.ExpiresAt)
}

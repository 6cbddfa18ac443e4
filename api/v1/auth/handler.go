package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agenthub/api/v1/middleware"
	"agenthub/internal/auth"
	"agenthub/internal/config"
	"agenthub/internal/httpx"
	"agenthub/internal/model"
	"agenthub/internal/stream"
)

// Handler handles authentication requests
type Handler struct {
	db        *gorm.DB
	cfg       *config.Config
	blacklist *auth.TokenBlacklist
	signals   *stream.SignalBuffer
}

// NewHandler creates a new auth handler
func NewHandler(db *gorm.DB, cfg *config.Config, blacklist *auth.TokenBlacklist, signals *stream.SignalBuffer) *Handler {
	return &Handler{
		db:        db,
		cfg:       cfg,
		blacklist: blacklist,
		signals:   signals,
	}
}

// UserInfo represents user information in responses
type UserInfo struct {
	ID          int        `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func userInfo(u *model.User) UserInfo {
	return UserInfo{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func (h *Handler) tokenPair(u *model.User) (*auth.TokenPair, error) {
	return auth.GenerateTokenPair(
		u.ID,
		u.Username,
		u.IsSuperuser,
		time.Duration(h.cfg.JWT.AccessExpireMinutes)*time.Minute,
		time.Duration(h.cfg.JWT.RefreshExpireMinutes)*time.Minute,
		h.cfg.JWT.Issuer,
	)
}

func (h *Handler) publish(signalType string, c *gin.Context, data map[string]interface{}) {
	if h.signals == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["ip_address"] = c.ClientIP()
	data["user_agent"] = c.Request.UserAgent()
	level := "info"
	if signalType == stream.SignalUserLoginFailed {
		level = "warning"
	}
	h.signals.Publish(signalType, level, data)
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Username        string `json:"username" binding:"required,max=150"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
	FirstName       string `json:"first_name" binding:"max=150"`
	LastName        string `json:"last_name" binding:"max=150"`
}

// Register handles POST /api/v1/auth/register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	var count int64
	if err := h.db.Model(&model.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	if count > 0 {
		httpx.FailErr(c, httpx.ErrAlreadyExists("a user with this username already exists"))
		return
	}
	if err := h.db.Model(&model.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	if count > 0 {
		httpx.FailErr(c, httpx.ErrAlreadyExists("a user with this email already exists"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to hash password", err))
		return
	}

	user := model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Status:       model.UserStatusActive,
	}
	if err := h.db.Create(&user).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create user", err))
		return
	}

	pair, err := h.tokenPair(&user)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to generate tokens", err))
		return
	}

	h.publish(stream.SignalUserRegistered, c, map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	})

	httpx.Created(c, gin.H{
		"user":   userInfo(&user),
		"tokens": pair,
	})
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	fail := func() {
		h.publish(stream.SignalUserLoginFailed, c, map[string]interface{}{
			"username": req.Username,
		})
		// Same error for unknown user and wrong password
		httpx.FailErr(c, httpx.ErrUnauthorized("invalid credentials"))
	}

	var user model.User
	if err := h.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail()
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}

	if user.Status == model.UserStatusInactive {
		httpx.FailErr(c, httpx.ErrForbidden("user is inactive"))
		return
	}

	if err := auth.ComparePassword(user.PasswordHash, req.Password); err != nil {
		fail()
		return
	}

	now := time.Now()
	if err := h.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	user.LastLoginAt = &now

	pair, err := h.tokenPair(&user)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to generate tokens", err))
		return
	}

	h.publish(stream.SignalUserLoggedIn, c, map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"email":    user.Email,
	})

	httpx.OK(c, gin.H{
		"user":   userInfo(&user),
		"tokens": pair,
	})
}

// RefreshRequest carries the refresh token
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Refresh handles POST /api/v1/auth/refresh
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamMissing("refresh token is required"))
		return
	}

	claims, err := auth.ParseRefreshToken(req.Refresh)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInvalidToken("invalid refresh token"))
		return
	}

	revoked, err := h.blacklist.IsRevoked(c.Request.Context(), claims.ID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to check token", err))
		return
	}
	if revoked {
		httpx.FailErr(c, httpx.ErrInvalidToken("refresh token has been revoked"))
		return
	}

	expireAt := time.Now().Add(time.Duration(h.cfg.JWT.AccessExpireMinutes) * time.Minute)
	access, err := auth.GenerateToken(claims.UID, claims.Username, claims.IsSuperuser, auth.TokenTypeAccess, expireAt, h.cfg.JWT.Issuer)
	if err != nil {
		httpx.FailErr(c, httpx.ErrInternalError("failed to generate token", err))
		return
	}

	httpx.OK(c, gin.H{
		"access":            access,
		"access_expires_at": expireAt.Format(time.RFC3339),
	})
}

// LogoutRequest carries the refresh token to revoke
type LogoutRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// Logout handles POST /api/v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamMissing("refresh token is required"))
		return
	}

	claims, err := auth.ParseRefreshToken(req.Refresh)
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid refresh token"))
		return
	}

	if claims.ExpiresAt != nil {
		if err := h.blacklist.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			httpx.FailErr(c, httpx.ErrInternalError("failed to revoke token", err))
			return
		}
	}

	h.publish(stream.SignalUserLoggedOut, c, map[string]interface{}{
		"user_id":  claims.UID,
		"username": claims.Username,
	})

	httpx.OKMsg(c, "logged out successfully", nil)
}

// Me handles GET /api/v1/auth/me
func (h *Handler) Me(c *gin.Context) {
	id := middleware.Identity(c)

	var user model.User
	if err := h.db.First(&user, id.UID).Error; err != nil {
		httpx.FailErr(c, httpx.ErrNotFound("user not found"))
		return
	}
	httpx.OK(c, userInfo(&user))
}

// ProfileUpdateRequest carries the editable profile fields. Pointers
// distinguish "omitted" from "set to empty".
type ProfileUpdateRequest struct {
	Email     *string `json:"email" binding:"omitempty,email"`
	FirstName *string `json:"first_name" binding:"omitempty,max=150"`
	LastName  *string `json:"last_name" binding:"omitempty,max=150"`
}

// Profile handles GET /api/v1/auth/profile
func (h *Handler) Profile(c *gin.Context) {
	h.Me(c)
}

// UpdateProfile handles PATCH /api/v1/auth/profile
func (h *Handler) UpdateProfile(c *gin.Context) {
	id := middleware.Identity(c)

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	var user model.User
	if err := h.db.First(&user, id.UID).Error; err != nil {
		httpx.FailErr(c, httpx.ErrNotFound("user not found"))
		return
	}

	updates := map[string]interface{}{}
	if req.Email != nil {
		var count int64
		if err := h.db.Model(&model.User{}).Where("email = ? AND id <> ?", *req.Email, user.ID).Count(&count).Error; err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("", err))
			return
		}
		if count > 0 {
			httpx.FailErr(c, httpx.ErrAlreadyExists("a user with this email already exists"))
			return
		}
		updates["email"] = *req.Email
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to update profile", err))
			return
		}
	}

	if err := h.db.First(&user, user.ID).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("", err))
		return
	}
	httpx.OK(c, userInfo(&user))
}

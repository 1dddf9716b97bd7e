package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/api/render"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/model"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/pkg/metrics"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/session"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/store"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// dummyPassword 不对应任何账号，user 为 nil 时比较结果一律视为失败。
const dummyPassword = "todo-reminder-dummy-password"

const (
	minPasswordLen = 6
	// bcrypt 只接受 72 字节以内的密码。
	maxPasswordBytes = 72
)

// 展示给用户的错误信息。
const (
	MsgPasswordMismatch   = "Passwords do not match"
	MsgPasswordTooShort   = "Password must be at least 6 characters"
	MsgPasswordTooLong    = "Password must be at most 72 bytes"
	MsgIdentityRequired   = "Username and email are required"
	MsgUserExists         = "Email or username already exists"
	MsgRegisterFailed     = "Registration failed, please try again"
	MsgInvalidCredentials = "Invalid email or password"
	MsgLoginFailed        = "Login failed, please try again"
)

// UserStore 是认证需要的用户存储。
type UserStore interface {
	UserExists(ctx context.Context, username, email string) (bool, error)
	CreateUser(ctx context.Context, user *model.User) error
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Handler 提供注册、登录与注销。
type Handler struct {
	users    UserStore
	sessions *session.Manager
	view     render.View
	logger   *slog.Logger

	// dummyHash 用于邮箱不存在时的等时比较。
	dummyHash []byte
}

// NewHandler 创建 Auth Handler。
func NewHandler(users UserStore, sessions *session.Manager, view render.View, logger *slog.Logger) *Handler {
	h := &Handler{
		users:    users,
		sessions: sessions,
		view:     view,
		logger:   logger,
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), bcrypt.DefaultCost)
	if err != nil {
		h.logError("generate dummy hash failed", err)
	}
	h.dummyHash = hash
	return h
}

type registerForm struct {
	Username        string `form:"username"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
}

type loginForm struct {
	Email    string `form:"email"`
	Password string `form:"password"`
}

// ShowRegister 渲染注册页。
func (h *Handler) ShowRegister(c *gin.Context) {
	h.view.Render(c, http.StatusOK, "register.html", gin.H{})
}

// Register 创建新用户，成功后跳转到登录页。
func (h *Handler) Register(c *gin.Context) {
	var form registerForm
	_ = c.ShouldBind(&form)
	username := strings.TrimSpace(form.Username)
	email := strings.TrimSpace(strings.ToLower(form.Email))

	fail := func(status int, msg, result string) {
		metrics.AuthAttemptsTotal.WithLabelValues("register", result).Inc()
		h.view.Render(c, status, "register.html", gin.H{
			"error":    msg,
			"username": username,
			"email":    email,
		})
	}

	if form.Password != form.ConfirmPassword {
		fail(http.StatusBadRequest, MsgPasswordMismatch, "invalid")
		return
	}
	if len(form.Password) < minPasswordLen {
		fail(http.StatusBadRequest, MsgPasswordTooShort, "invalid")
		return
	}
	if len(form.Password) > maxPasswordBytes {
		fail(http.StatusBadRequest, MsgPasswordTooLong, "invalid")
		return
	}
	if username == "" || email == "" {
		fail(http.StatusBadRequest, MsgIdentityRequired, "invalid")
		return
	}

	ctx := c.Request.Context()
	exists, err := h.users.UserExists(ctx, username, email)
	if err != nil {
		h.logError("check user failed", err, slog.String("email", email))
		fail(http.StatusInternalServerError, MsgRegisterFailed, "error")
		return
	}
	if exists {
		fail(http.StatusConflict, MsgUserExists, "conflict")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logError("hash password failed", err, slog.String("email", email))
		fail(http.StatusInternalServerError, MsgRegisterFailed, "error")
		return
	}

	user := model.User{
		Username: username,
		Email:    email,
		Password: string(hash),
	}
	if err := h.users.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			fail(http.StatusConflict, MsgUserExists, "conflict")
			return
		}
		h.logError("create user failed", err, slog.String("email", email))
		fail(http.StatusInternalServerError, MsgRegisterFailed, "error")
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	if h.logger != nil {
		h.logger.Info("user registered", slog.String("username", username), slog.String("email", email))
	}
	c.Redirect(http.StatusFound, "/login")
}

// ShowLogin 渲染登录页。
func (h *Handler) ShowLogin(c *gin.Context) {
	h.view.Render(c, http.StatusOK, "login.html", gin.H{})
}

// Login 校验用户并建立会话。
//
// 邮箱不存在和密码错误返回同一条信息，且两种情况都会执行一次 bcrypt 比较。
func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)
	email := strings.TrimSpace(strings.ToLower(form.Email))

	fail := func(status int, msg, result string) {
		metrics.AuthAttemptsTotal.WithLabelValues("login", result).Inc()
		h.view.Render(c, status, "login.html", gin.H{
			"error": msg,
			"email": email,
		})
	}

	user, err := h.users.FindUserByEmail(c.Request.Context(), email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logError("query user failed", err, slog.String("email", email))
		fail(http.StatusInternalServerError, MsgLoginFailed, "error")
		return
	}

	storedHash := h.dummyHash
	if user != nil {
		storedHash = []byte(user.Password)
	}
	if bcrypt.CompareHashAndPassword(storedHash, []byte(form.Password)) != nil || user == nil {
		fail(http.StatusUnauthorized, MsgInvalidCredentials, "invalid")
		return
	}

	if err := h.sessions.Start(c, session.Session{UserID: user.ID, Username: user.Username}); err != nil {
		h.logError("start session failed", err, slog.String("email", email))
		fail(http.StatusInternalServerError, MsgLoginFailed, "error")
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	if h.logger != nil {
		h.logger.Info("user logged in", slog.String("email", email), slog.Uint64("user_id", uint64(user.ID)))
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

// Logout 清除会话并跳转到登录页。
func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Clear(c); err != nil {
		h.logError("clear session failed", err)
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *Handler) logError(msg string, err error, attrs ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
}

package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionKey 是 gin 上下文中保存 session.Session 的键。
const SessionKey = "session"

// SessionGate 要求请求带有有效会话，否则重定向到登录页。
//
// 通过后会话同时写入 gin 上下文和 request context。
func SessionGate(sessions *session.Manager, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := sessions.Load(c)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) && logger != nil {
				logger.Warn("load session failed", slog.String("error", err.Error()))
			}
			c.Redirect(http.StatusFound, "/login")
			c.Abort()
			return
		}

		c.Set(SessionKey, sess)
		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sess))
		c.Next()
	}
}

// CurrentSession 返回 SessionGate 写入的会话。
func CurrentSession(c *gin.Context) (session.Session, bool) {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(session.Session); ok {
			return s, true
		}
	}
	return session.FromContext(c.Request.Context())
}

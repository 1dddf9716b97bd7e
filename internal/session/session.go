package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "todo:session:"

// ErrNoSession 请求没有携带有效会话。
var ErrNoSession = errors.New("no session")

// Session 是登录用户在请求中的身份。
type Session struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

type ctxKey struct{}

// NewContext 将会话写入 context。
func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext 读取 context 中的会话。
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// Options 会话 cookie 配置。
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Manager 负责签发、读取和清除会话。
//
// cookie 中保存 HS256 签名的 JWT（sub=用户 ID，username，jti=会话 ID），
// Redis 中保存同一会话 ID 的服务端记录，两者都有效时会话才成立。
type Manager struct {
	rdb    *redis.Client
	secret []byte
	opts   Options
}

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// NewManager 创建会话管理器。
func NewManager(rdb *redis.Client, secret string, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = "todo_session"
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		rdb:    rdb,
		secret: []byte(secret),
		opts:   opts,
	}
}

// Start 为用户创建新会话并写入 cookie。
func (m *Manager) Start(c *gin.Context, s Session) error {
	id, err := newSessionID()
	if err != nil {
		return fmt.Errorf("session id: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := m.rdb.Set(c.Request.Context(), keyPrefix+id, data, m.opts.TTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatUint(uint64(s.UserID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: s.Username,
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		_ = m.rdb.Del(c.Request.Context(), keyPrefix+id).Err()
		return fmt.Errorf("sign session: %w", err)
	}

	m.setCookie(c, signed, int(m.opts.TTL.Seconds()))
	return nil
}

// Load 读取并校验请求中的会话。
func (m *Manager) Load(c *gin.Context) (Session, error) {
	cl, err := m.parseCookie(c)
	if err != nil {
		return Session{}, err
	}

	raw, err := m.rdb.Get(c.Request.Context(), keyPrefix+cl.ID).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, ErrNoSession
	}
	if strconv.FormatUint(uint64(s.UserID), 10) != cl.Subject {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Clear 删除服务端记录并让 cookie 失效。
func (m *Manager) Clear(c *gin.Context) error {
	var err error
	if cl, parseErr := m.parseCookie(c); parseErr == nil {
		err = m.rdb.Del(c.Request.Context(), keyPrefix+cl.ID).Err()
	}
	m.setCookie(c, "", -1)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) parseCookie(c *gin.Context) (*claims, error) {
	raw, err := c.Cookie(m.opts.CookieName)
	if err != nil || raw == "" {
		return nil, ErrNoSession
	}
	cl := &claims{}
	token, err := jwt.ParseWithClaims(raw, cl, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || cl.ID == "" || cl.Subject == "" {
		return nil, ErrNoSession
	}
	return cl, nil
}

func (m *Manager) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.opts.CookieName, value, maxAge, "/", "", m.opts.Secure, true)
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/api/auth"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/api/middleware"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/api/render"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/config"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/model"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/pkg/metrics"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/session"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/store"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/web"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Server 封装了 Web 服务所需的依赖和路由处理。
//
// 它持有数据访问层、Redis 会话存储以及 Gin 路由引擎。
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	rdb       *redis.Client
	router    *gin.Engine
	sessions  *session.Manager
	auth      *auth.Handler
	view      render.View
	taskStore TaskStore
}

// TaskStore 是任务控制器使用的数据访问接口，所有方法都按 userID 限定范围。
type TaskStore interface {
	ListTasks(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, error)
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID uint, upd model.TaskUpdate) (int64, error)
	CompleteTask(ctx context.Context, userID, taskID uint) (int64, error)
	DeleteTask(ctx context.Context, userID, taskID uint) (int64, error)
}

// NewServer 初始化 Web 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（会话存储）
// 3. 加载内嵌模板并初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := store.Open(cfg.MySQL.DSN)
	if err != nil {
		return nil, err
	}
	st := store.New(db)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = st.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	s := New(cfg, logger, st, rdb, render.HTML{})
	if err := render.LoadTemplates(s.router, web.Templates, "templates/*.html"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load templates: %w", err)
	}
	return s, nil
}

// New 用已建立的依赖组装服务器并注册路由。
func New(cfg *config.Config, logger *slog.Logger, st *store.Store, rdb *redis.Client, view render.View) *Server {
	metrics.InitMetrics()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics())

	sessions := session.NewManager(rdb, cfg.Security.SessionSecret, session.Options{
		CookieName: cfg.App.CookieName,
		TTL:        cfg.App.SessionTTL,
		Secure:     cfg.App.CookieSecure,
	})

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		rdb:       rdb,
		router:    r,
		sessions:  sessions,
		auth:      auth.NewHandler(st, sessions, view, logger),
		view:      view,
		taskStore: st,
	}
	s.registerRoutes()
	return s
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与 Redis 连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// registerRoutes 注册所有路由。
func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	s.router.GET("/", s.handleIndex)
	s.router.GET("/register", s.auth.ShowRegister)
	s.router.POST("/register", s.auth.Register)
	s.router.GET("/login", s.auth.ShowLogin)
	s.router.POST("/login", s.auth.Login)
	s.router.GET("/logout", s.auth.Logout)

	authed := s.router.Group("/")
	authed.Use(middleware.SessionGate(s.sessions, s.logger))
	authed.GET("/dashboard", s.handleDashboard)
	authed.POST("/add_task", s.handleAddTask)
	authed.GET("/edit_task/:id", s.handleEditTaskForm)
	authed.POST("/edit_task/:id", s.handleEditTask)
	authed.GET("/complete_task/:id", s.handleCompleteTask)
	authed.POST("/complete_task/:id", s.handleCompleteTask)
	authed.GET("/delete_task/:id", s.handleDeleteTask)
	authed.POST("/delete_task/:id", s.handleDeleteTask)
}

func (s *Server) handleIndex(c *gin.Context) {
	if _, err := s.sessions.Load(c); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.store == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/api/middleware"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/model"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/pkg/metrics"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/store"

	"github.com/gin-gonic/gin"
)

// 展示给用户的错误信息。
const (
	MsgLoadTasksFailed     = "Failed to load tasks"
	MsgTitleRequired       = "Title is required"
	MsgInvalidReminderDate = "Invalid reminder date"
)

// taskForm 创建/编辑任务的表单。
type taskForm struct {
	Title        string `form:"title"`
	Description  string `form:"description"`
	ReminderDate string `form:"reminder_date"`
}

// handleDashboard 返回任务列表。
//
// GET /dashboard?filter=all|completed|pending
func (s *Server) handleDashboard(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	filter := model.ParseTaskFilter(c.DefaultQuery("filter", string(model.TaskFilterAll)))

	tasks, err := s.taskStore.ListTasks(c.Request.Context(), sess.UserID, filter)
	if err != nil {
		s.logger.Error("list tasks failed", slog.Uint64("user_id", uint64(sess.UserID)), slog.String("error", err.Error()))
		metrics.TaskOperationsTotal.WithLabelValues("list", "error").Inc()
		s.view.Render(c, http.StatusInternalServerError, "dashboard.html", gin.H{
			"error":         MsgLoadTasksFailed,
			"tasks":         []model.Task{},
			"username":      sess.Username,
			"filter_option": filter,
		})
		return
	}

	metrics.TaskOperationsTotal.WithLabelValues("list", "ok").Inc()
	s.view.Render(c, http.StatusOK, "dashboard.html", gin.H{
		"tasks":         tasks,
		"username":      sess.Username,
		"filter_option": filter,
	})
}

// handleAddTask 创建任务，无论结果如何都跳转回列表。
//
// 标题和描述按提交内容原样保存，只在判断标题是否为空时去掉空白。
//
// POST /add_task
func (s *Server) handleAddTask(c *gin.Context) {
	defer c.Redirect(http.StatusFound, "/dashboard")

	sess, _ := middleware.CurrentSession(c)
	var form taskForm
	_ = c.ShouldBind(&form)

	if strings.TrimSpace(form.Title) == "" {
		metrics.TaskOperationsTotal.WithLabelValues("create", "invalid").Inc()
		return
	}
	reminder, err := model.ParseReminderDate(form.ReminderDate)
	if err != nil {
		s.logger.Warn("invalid reminder date",
			slog.Uint64("user_id", uint64(sess.UserID)),
			slog.String("reminder_date", form.ReminderDate))
		metrics.TaskOperationsTotal.WithLabelValues("create", "invalid").Inc()
		return
	}

	task := model.Task{
		UserID:       sess.UserID,
		Title:        form.Title,
		Description:  form.Description,
		ReminderDate: reminder,
	}
	if err := s.taskStore.CreateTask(c.Request.Context(), &task); err != nil {
		s.logger.Error("create task failed", slog.Uint64("user_id", uint64(sess.UserID)), slog.String("error", err.Error()))
		metrics.TaskOperationsTotal.WithLabelValues("create", "error").Inc()
		return
	}
	metrics.TaskOperationsTotal.WithLabelValues("create", "ok").Inc()
}

// handleEditTaskForm 渲染编辑表单，任务不存在或不属于当前用户时跳转回列表。
//
// GET /edit_task/:id
func (s *Server) handleEditTaskForm(c *gin.Context) {
	task, ok := s.loadOwnedTask(c)
	if !ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	s.view.Render(c, http.StatusOK, "edit_task.html", gin.H{"task": task})
}

// handleEditTask 更新任务标题、描述和提醒日期。
//
// POST /edit_task/:id
func (s *Server) handleEditTask(c *gin.Context) {
	task, ok := s.loadOwnedTask(c)
	if !ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	sess, _ := middleware.CurrentSession(c)

	var form taskForm
	_ = c.ShouldBind(&form)
	title := form.Title
	description := form.Description

	invalid := func(msg string) {
		metrics.TaskOperationsTotal.WithLabelValues("edit", "invalid").Inc()
		task.Title = title
		task.Description = description
		s.view.Render(c, http.StatusBadRequest, "edit_task.html", gin.H{"task": task, "error": msg})
	}
	if strings.TrimSpace(title) == "" {
		invalid(MsgTitleRequired)
		return
	}
	reminder, err := model.ParseReminderDate(form.ReminderDate)
	if err != nil {
		invalid(MsgInvalidReminderDate)
		return
	}

	n, err := s.taskStore.UpdateTask(c.Request.Context(), sess.UserID, task.ID, model.TaskUpdate{
		Title:        title,
		Description:  description,
		ReminderDate: reminder,
	})
	s.recordMutation("edit", sess.UserID, task.ID, n, err)
	c.Redirect(http.StatusFound, "/dashboard")
}

// handleCompleteTask 将任务标记为已完成。
//
// GET|POST /complete_task/:id
func (s *Server) handleCompleteTask(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	if taskID, ok := parseTaskID(c); ok {
		n, err := s.taskStore.CompleteTask(c.Request.Context(), sess.UserID, taskID)
		s.recordMutation("complete", sess.UserID, taskID, n, err)
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

// handleDeleteTask 删除任务。
//
// GET|POST /delete_task/:id
func (s *Server) handleDeleteTask(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	if taskID, ok := parseTaskID(c); ok {
		n, err := s.taskStore.DeleteTask(c.Request.Context(), sess.UserID, taskID)
		s.recordMutation("delete", sess.UserID, taskID, n, err)
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

// loadOwnedTask 读取当前用户的任务。
//
// 不存在、不属于当前用户、ID 非法或查询失败都返回 false，调用方不区分。
func (s *Server) loadOwnedTask(c *gin.Context) (*model.Task, bool) {
	sess, _ := middleware.CurrentSession(c)
	taskID, ok := parseTaskID(c)
	if !ok {
		return nil, false
	}
	task, err := s.taskStore.GetTask(c.Request.Context(), sess.UserID, taskID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("get task failed",
				slog.Uint64("user_id", uint64(sess.UserID)),
				slog.Uint64("task_id", uint64(taskID)),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return task, true
}

// recordMutation 记录写操作结果，影响 0 行按成功处理。
func (s *Server) recordMutation(op string, userID, taskID uint, affected int64, err error) {
	if err != nil {
		s.logger.Error(op+" task failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.Uint64("task_id", uint64(taskID)),
			slog.String("error", err.Error()))
		metrics.TaskOperationsTotal.WithLabelValues(op, "error").Inc()
		return
	}
	result := "ok"
	if affected == 0 {
		result = "noop"
	}
	metrics.TaskOperationsTotal.WithLabelValues(op, result).Inc()
}

func parseTaskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

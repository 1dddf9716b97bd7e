package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/api/middleware"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/config"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/model"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/pkg/metrics"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/session"
	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/store"

	"github.com/gin-gonic/gin"
)

type mockTaskStore struct {
	listFunc     func(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, error)
	createFunc   func(ctx context.Context, task *model.Task) error
	getFunc      func(ctx context.Context, userID, taskID uint) (*model.Task, error)
	updateFunc   func(ctx context.Context, userID, taskID uint, upd model.TaskUpdate) (int64, error)
	completeFunc func(ctx context.Context, userID, taskID uint) (int64, error)
	deleteFunc   func(ctx context.Context, userID, taskID uint) (int64, error)

	createCalls   int
	updateCalls   int
	completeCalls int
	deleteCalls   int
	lastFilter    model.TaskFilter
	lastCreated   *model.Task
	lastUpdate    model.TaskUpdate
}

func (m *mockTaskStore) ListTasks(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, error) {
	m.lastFilter = filter
	if m.listFunc == nil {
		return []model.Task{}, nil
	}
	return m.listFunc(ctx, userID, filter)
}

func (m *mockTaskStore) CreateTask(ctx context.Context, task *model.Task) error {
	m.createCalls++
	m.lastCreated = task
	if m.createFunc == nil {
		return nil
	}
	return m.createFunc(ctx, task)
}

func (m *mockTaskStore) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	if m.getFunc == nil {
		return nil, store.ErrNotFound
	}
	return m.getFunc(ctx, userID, taskID)
}

func (m *mockTaskStore) UpdateTask(ctx context.Context, userID, taskID uint, upd model.TaskUpdate) (int64, error) {
	m.updateCalls++
	m.lastUpdate = upd
	if m.updateFunc == nil {
		return 1, nil
	}
	return m.updateFunc(ctx, userID, taskID, upd)
}

func (m *mockTaskStore) CompleteTask(ctx context.Context, userID, taskID uint) (int64, error) {
	m.completeCalls++
	if m.completeFunc == nil {
		return 1, nil
	}
	return m.completeFunc(ctx, userID, taskID)
}

func (m *mockTaskStore) DeleteTask(ctx context.Context, userID, taskID uint) (int64, error) {
	m.deleteCalls++
	if m.deleteFunc == nil {
		return 1, nil
	}
	return m.deleteFunc(ctx, userID, taskID)
}

type rendered struct {
	status int
	name   string
	data   gin.H
}

type recordingView struct {
	calls []rendered
}

func (v *recordingView) Render(c *gin.Context, status int, name string, data gin.H) {
	v.calls = append(v.calls, rendered{status: status, name: name, data: data})
	c.Status(status)
}

func (v *recordingView) last(t *testing.T) rendered {
	t.Helper()
	if len(v.calls) == 0 {
		t.Fatalf("expected a render call")
	}
	return v.calls[len(v.calls)-1]
}

// newTaskRouter 绕过会话中间件，直接注入已登录用户。
func newTaskRouter(st *mockTaskStore, view *recordingView) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics.InitMetrics()

	s := &Server{
		cfg:       &config.Config{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		view:      view,
		taskStore: st,
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.SessionKey, session.Session{UserID: 1, Username: "alice"})
		c.Next()
	})
	r.GET("/dashboard", s.handleDashboard)
	r.POST("/add_task", s.handleAddTask)
	r.GET("/edit_task/:id", s.handleEditTaskForm)
	r.POST("/edit_task/:id", s.handleEditTask)
	r.GET("/complete_task/:id", s.handleCompleteTask)
	r.GET("/delete_task/:id", s.handleDeleteTask)
	return r
}

func doRequest(r http.Handler, method, path string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func expectRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %q", location, got)
	}
}

func TestDashboard_FilterParsing(t *testing.T) {
	cases := map[string]model.TaskFilter{
		"":                       model.TaskFilterAll,
		"?filter=all":            model.TaskFilterAll,
		"?filter=completed":      model.TaskFilterCompleted,
		"?filter=pending":        model.TaskFilterPending,
		"?filter=bogus":          model.TaskFilterAll,
		"?filter=1%20OR%201%3D1": model.TaskFilterAll,
	}
	for query, want := range cases {
		st := &mockTaskStore{}
		view := &recordingView{}
		r := newTaskRouter(st, view)

		w := doRequest(r, http.MethodGet, "/dashboard"+query, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", query, w.Code)
		}
		if st.lastFilter != want {
			t.Fatalf("%q: expected filter %s, got %s", query, want, st.lastFilter)
		}
		got := view.last(t)
		if got.name != "dashboard.html" || got.data["filter_option"] != want || got.data["username"] != "alice" {
			t.Fatalf("%q: unexpected render: %+v", query, got)
		}
	}
}

func TestDashboard_StorageError(t *testing.T) {
	st := &mockTaskStore{listFunc: func(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, error) {
		return nil, errors.New("connection reset")
	}}
	view := &recordingView{}
	w := doRequest(newTaskRouter(st, view), http.MethodGet, "/dashboard", nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	got := view.last(t)
	if got.data["error"] != MsgLoadTasksFailed {
		t.Fatalf("expected generic error, got %v", got.data["error"])
	}
	if tasks, ok := got.data["tasks"].([]model.Task); !ok || len(tasks) != 0 {
		t.Fatalf("expected empty task list, got %v", got.data["tasks"])
	}
}

func TestAddTask(t *testing.T) {
	st := &mockTaskStore{}
	r := newTaskRouter(st, &recordingView{})

	w := doRequest(r, http.MethodPost, "/add_task", url.Values{
		"title":         {"  Buy milk "},
		"description":   {" 2 litres\n"},
		"reminder_date": {"2026-11-02"},
	})
	expectRedirect(t, w, "/dashboard")
	if st.createCalls != 1 {
		t.Fatalf("expected 1 create call, got %d", st.createCalls)
	}
	task := st.lastCreated
	if task.UserID != 1 || task.Title != "  Buy milk " || task.Description != " 2 litres\n" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.ReminderDateString() != "2026-11-02" {
		t.Fatalf("unexpected reminder date: %v", task.ReminderDate)
	}
}

func TestAddTask_EmptyReminderIsNil(t *testing.T) {
	st := &mockTaskStore{}
	r := newTaskRouter(st, &recordingView{})

	doRequest(r, http.MethodPost, "/add_task", url.Values{"title": {"t"}, "reminder_date": {""}})
	if st.createCalls != 1 || st.lastCreated.ReminderDate != nil {
		t.Fatalf("expected task with nil reminder date, got %+v", st.lastCreated)
	}
}

func TestAddTask_SilentNoOps(t *testing.T) {
	for name, form := range map[string]url.Values{
		"missing title": {"description": {"d"}},
		"blank title":   {"title": {"   "}},
		"bad date":      {"title": {"t"}, "reminder_date": {"tomorrow"}},
	} {
		st := &mockTaskStore{}
		w := doRequest(newTaskRouter(st, &recordingView{}), http.MethodPost, "/add_task", form)
		expectRedirect(t, w, "/dashboard")
		if st.createCalls != 0 {
			t.Fatalf("%s: expected no insert", name)
		}
	}
}

func TestAddTask_StorageErrorStillRedirects(t *testing.T) {
	st := &mockTaskStore{createFunc: func(ctx context.Context, task *model.Task) error {
		return errors.New("deadlock")
	}}
	w := doRequest(newTaskRouter(st, &recordingView{}), http.MethodPost, "/add_task", url.Values{"title": {"t"}})
	expectRedirect(t, w, "/dashboard")
}

func TestEditTask_NotOwnedOrMissing(t *testing.T) {
	st := &mockTaskStore{}
	view := &recordingView{}
	r := newTaskRouter(st, view)

	for _, path := range []string{"/edit_task/7", "/edit_task/abc", "/edit_task/0"} {
		expectRedirect(t, doRequest(r, http.MethodGet, path, nil), "/dashboard")
		expectRedirect(t, doRequest(r, http.MethodPost, path, url.Values{"title": {"x"}}), "/dashboard")
	}
	if st.updateCalls != 0 || len(view.calls) != 0 {
		t.Fatalf("expected no update and no render for foreign task")
	}
}

func TestEditTask_FormAndUpdate(t *testing.T) {
	existing, _ := model.ParseReminderDate("2026-01-01")
	st := &mockTaskStore{getFunc: func(ctx context.Context, userID, taskID uint) (*model.Task, error) {
		if userID != 1 || taskID != 7 {
			return nil, store.ErrNotFound
		}
		return &model.Task{ID: 7, UserID: 1, Title: "old", ReminderDate: existing}, nil
	}}
	view := &recordingView{}
	r := newTaskRouter(st, view)

	w := doRequest(r, http.MethodGet, "/edit_task/7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := view.last(t)
	if task, ok := got.data["task"].(*model.Task); got.name != "edit_task.html" || !ok || task.Title != "old" {
		t.Fatalf("unexpected render: %+v", got)
	}

	w = doRequest(r, http.MethodPost, "/edit_task/7", url.Values{
		"title":         {" new"},
		"description":   {"desc "},
		"reminder_date": {""},
	})
	expectRedirect(t, w, "/dashboard")
	if st.updateCalls != 1 {
		t.Fatalf("expected 1 update, got %d", st.updateCalls)
	}
	if st.lastUpdate.Title != " new" || st.lastUpdate.Description != "desc " || st.lastUpdate.ReminderDate != nil {
		t.Fatalf("unexpected update: %+v", st.lastUpdate)
	}
}

func TestEditTask_InvalidInput(t *testing.T) {
	st := &mockTaskStore{getFunc: func(ctx context.Context, userID, taskID uint) (*model.Task, error) {
		return &model.Task{ID: taskID, UserID: userID, Title: "old"}, nil
	}}
	view := &recordingView{}
	r := newTaskRouter(st, view)

	cases := map[string]url.Values{
		MsgTitleRequired:       {"title": {" "}},
		MsgInvalidReminderDate: {"title": {"t"}, "reminder_date": {"31/12/2026"}},
	}
	for msg, form := range cases {
		w := doRequest(r, http.MethodPost, "/edit_task/3", form)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		if got := view.last(t); got.name != "edit_task.html" || got.data["error"] != msg {
			t.Fatalf("unexpected render: %+v", got)
		}
	}
	if st.updateCalls != 0 {
		t.Fatalf("expected no update on invalid input")
	}
}

func TestCompleteAndDelete_AlwaysRedirect(t *testing.T) {
	var completedFor, deletedFor [2]uint
	st := &mockTaskStore{
		completeFunc: func(ctx context.Context, userID, taskID uint) (int64, error) {
			completedFor = [2]uint{userID, taskID}
			return 0, nil
		},
		deleteFunc: func(ctx context.Context, userID, taskID uint) (int64, error) {
			deletedFor = [2]uint{userID, taskID}
			return 0, errors.New("lock wait timeout")
		},
	}
	r := newTaskRouter(st, &recordingView{})

	expectRedirect(t, doRequest(r, http.MethodGet, "/complete_task/9", nil), "/dashboard")
	expectRedirect(t, doRequest(r, http.MethodGet, "/delete_task/9", nil), "/dashboard")
	if completedFor != [2]uint{1, 9} || deletedFor != [2]uint{1, 9} {
		t.Fatalf("expected scoped calls for user 1 task 9, got %v %v", completedFor, deletedFor)
	}

	expectRedirect(t, doRequest(r, http.MethodGet, "/complete_task/nope", nil), "/dashboard")
	expectRedirect(t, doRequest(r, http.MethodGet, "/delete_task/-1", nil), "/dashboard")
	if st.completeCalls != 1 || st.deleteCalls != 1 {
		t.Fatalf("expected invalid ids to skip storage, got %d/%d calls", st.completeCalls, st.deleteCalls)
	}
}

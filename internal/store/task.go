package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/model"

	"gorm.io/gorm"
)

// ListTasks 返回用户的任务列表，按创建时间倒序。
func (s *Store) ListTasks(ctx context.Context, userID uint, filter model.TaskFilter) ([]model.Task, error) {
	tasks := []model.Task{}
	err := s.withConn(ctx, func(tx *gorm.DB) error {
		q := tx.Where("user_id = ?", userID)
		switch filter {
		case model.TaskFilterCompleted:
			q = q.Where("is_completed = ?", true)
		case model.TaskFilterPending:
			q = q.Where("is_completed = ?", false)
		}
		return q.Order("created_at DESC").Order("id DESC").Find(&tasks).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask 插入任务，CreatedAt 由存储层写入。
func (s *Store) CreateTask(ctx context.Context, task *model.Task) error {
	task.ID = 0
	task.IsCompleted = false
	task.CreatedAt = time.Time{}
	err := s.withConn(ctx, func(tx *gorm.DB) error {
		return tx.Create(task).Error
	})
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask 读取属于 userID 的任务，不存在或不属于该用户时返回 ErrNotFound。
func (s *Store) GetTask(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	err := s.withConn(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &task, nil
}

// UpdateTask 更新标题、描述和提醒日期。
//
// 更新语句本身带 user_id 条件，返回受影响行数。
func (s *Store) UpdateTask(ctx context.Context, userID, taskID uint, upd model.TaskUpdate) (int64, error) {
	updates := map[string]interface{}{
		"title":         upd.Title,
		"description":   upd.Description,
		"reminder_date": upd.ReminderDate,
	}
	return s.execScoped(ctx, "update task", func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Task{}).
			Where("id = ? AND user_id = ?", taskID, userID).
			Updates(updates)
	})
}

// CompleteTask 将任务标记为已完成，重复调用无副作用。
func (s *Store) CompleteTask(ctx context.Context, userID, taskID uint) (int64, error) {
	return s.execScoped(ctx, "complete task", func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&model.Task{}).
			Where("id = ? AND user_id = ?", taskID, userID).
			Update("is_completed", true)
	})
}

// DeleteTask 删除任务，重复调用只是匹配不到行。
func (s *Store) DeleteTask(ctx context.Context, userID, taskID uint) (int64, error) {
	return s.execScoped(ctx, "delete task", func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND user_id = ?", taskID, userID).Delete(&model.Task{})
	})
}

func (s *Store) execScoped(ctx context.Context, op string, stmt func(tx *gorm.DB) *gorm.DB) (int64, error) {
	var affected int64
	err := s.withConn(ctx, func(tx *gorm.DB) error {
		res := stmt(tx)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return affected, nil
}

package model

import (
	"strings"
	"time"
)

// Task 表示用户的一条待办事项。
//
// 任务只属于一个用户，所有读写都必须带上 user_id 条件。
type Task struct {
	ID        uint      `gorm:"primaryKey"`     // 任务唯一标识
	CreatedAt time.Time `gorm:"autoCreateTime"` // 创建时间（入库时由存储层赋值）

	UserID       uint       `gorm:"not null;index"`    // 所属用户 ID
	User         User       `gorm:"foreignKey:UserID"` // 所属用户
	Title        string     `gorm:"not null"`          // 标题（必填）
	Description  string     `gorm:"type:text"`         // 描述（可选）
	ReminderDate *time.Time `gorm:"type:date"`         // 提醒日期（可选，仅日期）
	IsCompleted  bool       `gorm:"default:false"`     // 是否已完成
}

// TaskUpdate 是编辑任务时允许修改的字段。
type TaskUpdate struct {
	Title        string
	Description  string
	ReminderDate *time.Time
}

// TaskFilter 任务列表的过滤条件。
type TaskFilter string

const (
	TaskFilterAll       TaskFilter = "all"
	TaskFilterCompleted TaskFilter = "completed"
	TaskFilterPending   TaskFilter = "pending"
)

// ParseTaskFilter 解析查询参数，无法识别的值按 "all" 处理。
func ParseTaskFilter(s string) TaskFilter {
	switch TaskFilter(strings.ToLower(strings.TrimSpace(s))) {
	case TaskFilterCompleted:
		return TaskFilterCompleted
	case TaskFilterPending:
		return TaskFilterPending
	default:
		return TaskFilterAll
	}
}

// ReminderDateLayout 是表单中提醒日期的格式（HTML date input）。
const ReminderDateLayout = "2006-01-02"

// ParseReminderDate 解析表单中的提醒日期，空字符串返回 nil。
func ParseReminderDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(ReminderDateLayout, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ReminderDateString 返回用于表单回填的提醒日期字符串。
func (t Task) ReminderDateString() string {
	if t.ReminderDate == nil {
		return ""
	}
	return t.ReminderDate.Format(ReminderDateLayout)
}

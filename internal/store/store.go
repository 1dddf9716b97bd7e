package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/JOHNKENNADIA02/ToDo-Reminder-App/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var (
	// ErrNotFound 记录不存在（或不属于当前用户）。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 用户名或邮箱违反唯一约束。
	ErrDuplicate = errors.New("duplicate user")
)

// Store 是数据访问层。
//
// 每个方法都在一个独立借出的连接上执行，并在所有返回路径上归还连接。
// 所有任务语句都带 user_id 条件。
type Store struct {
	db *gorm.DB
}

// Open 连接 MySQL。
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

// New 包装一个已打开的 gorm 连接。
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB 返回底层 gorm 连接。
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate 创建 users / tasks 表及唯一索引。
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping 检查数据库是否可用。
func (s *Store) Ping(ctx context.Context) error {
	return s.withConn(ctx, func(tx *gorm.DB) error {
		var one int
		return tx.Raw("SELECT 1").Scan(&one).Error
	})
}

// Close 关闭连接池。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// withConn 借出一个连接执行 fn，返回时（包括出错）归还。
func (s *Store) withConn(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Connection(fn)
}

// UserExists 检查用户名或邮箱是否已被占用。
//
// 这只是提前给出友好提示，真正的唯一性由唯一索引保证。
func (s *Store) UserExists(ctx context.Context, username, email string) (bool, error) {
	var count int64
	err := s.withConn(ctx, func(tx *gorm.DB) error {
		return tx.Model(&model.User{}).
			Where("email = ? OR username = ?", email, username).
			Count(&count).Error
	})
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return count > 0, nil
}

// CreateUser 插入新用户，违反唯一约束时返回 ErrDuplicate。
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	err := s.withConn(ctx, func(tx *gorm.DB) error {
		return tx.Create(user).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindUserByEmail 按邮箱查找用户。
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := s.withConn(ctx, func(tx *gorm.DB) error {
		return tx.Where("email = ?", email).First(&user).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

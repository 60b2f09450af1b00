package draftstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/semmidev/phylaxctl/internal/domain"
)

// formDraft is the persisted row. It has no secret column.
type formDraft struct {
	Key         string `gorm:"primaryKey;column:draft_key"`
	Name        string
	Host        string
	Port        string
	Engine      string
	Environment string
	Username    string
	SSLMode     string
	UpdatedAt   time.Time
}

func (formDraft) TableName() string { return "form_drafts" }

// SQLiteStore keeps form drafts in a local SQLite file.
type SQLiteStore struct {
	db *gorm.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create draft directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&formDraft{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate draft store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (domain.SavedDraft, bool, error) {
	var row formDraft
	err := s.db.WithContext(ctx).Where("draft_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SavedDraft{}, false, nil
	}
	if err != nil {
		return domain.SavedDraft{}, false, fmt.Errorf("load draft %s: %w", key, err)
	}
	return domain.SavedDraft{
		Name:        row.Name,
		Host:        row.Host,
		Port:        row.Port,
		Engine:      domain.Engine(row.Engine),
		Environment: row.Environment,
		Username:    row.Username,
		SSLMode:     domain.SSLMode(row.SSLMode),
	}, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, d domain.SavedDraft) error {
	row := formDraft{
		Key:         key,
		Name:        d.Name,
		Host:        d.Host,
		Port:        d.Port,
		Engine:      string(d.Engine),
		Environment: d.Environment,
		Username:    d.Username,
		SSLMode:     string(d.SSLMode),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save draft %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("draft_key = ?", key).Delete(&formDraft{}).Error; err != nil {
		return fmt.Errorf("delete draft %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thaitruongdao01-afk/saintpaul/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type entry struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (entry) TableName() string { return "storage_entries" }

// SQL stores values in the storage_entries table. Change notices only reach
// watchers in this process.
type SQL struct {
	client *db.Client
	watch  watchers
	now    func() time.Time
}

func NewSQL(client *db.Client) *SQL {
	return &SQL{client: client, now: time.Now}
}

func (s *SQL) conn(ctx context.Context) *gorm.DB {
	return s.client.DB().WithContext(ctx)
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var row entry
	err := s.conn(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select storage entry %q: %w", key, err)
	}
	return row.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	row := entry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	err := s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert storage entry %q: %w", key, err)
	}
	s.watch.notify(Change{Key: key, Value: value})
	return nil
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	res := s.conn(ctx).Where("key = ?", key).Delete(&entry{})
	if res.Error != nil {
		return fmt.Errorf("delete storage entry %q: %w", key, res.Error)
	}
	if res.RowsAffected > 0 {
		s.watch.notify(Change{Key: key, Deleted: true})
	}
	return nil
}

func (s *SQL) Watch(fn func(Change)) func() {
	return s.watch.add(fn)
}

func (s *SQL) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close drops watchers. The db client is owned by the caller.
func (s *SQL) Close() error {
	s.watch.clear()
	return nil
}

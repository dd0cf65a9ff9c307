package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quorum/internal/plan"
	"quorum/internal/store"
	storemodel "quorum/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormStore persists plans in SQLite through Gorm.
type GormStore struct {
	db *gorm.DB
}

var _ store.PlanStore = (*GormStore)(nil)

// NewGormStore opens (and migrates) the plan database at path.
func NewGormStore(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.PlanModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func (s *GormStore) SavePlan(ctx context.Context, p *plan.Plan) error {
	if s == nil || s.db == nil || p == nil {
		return nil
	}
	row, err := storemodel.FromPlan(p)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

func (s *GormStore) GetPlan(ctx context.Context, planID string) (*plan.Plan, error) {
	var row storemodel.PlanModel
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(planID)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToPlan()
}

func (s *GormStore) GetPlanByPosition(ctx context.Context, positionID string) (*plan.Plan, error) {
	var row storemodel.PlanModel
	err := s.db.WithContext(ctx).Where("position_id = ?", strings.TrimSpace(positionID)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.ToPlan()
}

// DeletePlan removes whatever plan row the position holds. Deleting a
// position with no row is a no-op.
func (s *GormStore) DeletePlan(ctx context.Context, positionID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).
		Where("position_id = ?", strings.TrimSpace(positionID)).
		Delete(&storemodel.PlanModel{}).Error
}

func (s *GormStore) ListPlans(ctx context.Context) ([]*plan.Plan, error) {
	var rows []storemodel.PlanModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*plan.Plan, 0, len(rows))
	for _, row := range rows {
		p, err := row.ToPlan()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

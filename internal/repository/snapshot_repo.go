package repository

import (
	"context"
	"errors"
	"time"

	"BetOracle/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EloRepository Elo 快照持久化
type EloRepository interface {
	// SaveSnapshots 批量落库，(club, date) 已存在时覆盖 elo
	SaveSnapshots(ctx context.Context, snapshots []*model.EloSnapshot) error
	// LatestElo 某球队在指定日期（含）之前最近一条快照的评分，无记录返回 (nil, nil)
	LatestElo(ctx context.Context, club string, before time.Time) (*float64, error)
}

// ChainLogRepository 链上调用审计记录
type ChainLogRepository interface {
	Create(ctx context.Context, log *model.ChainCallLog) error
}

type snapshotRepository struct {
	db *gorm.DB
}

// NewEloRepository 创建 Elo 快照仓储
func NewEloRepository(db *gorm.DB) EloRepository {
	return &snapshotRepository{db: db}
}

// NewChainLogRepository 创建链上调用审计仓储
func NewChainLogRepository(db *gorm.DB) ChainLogRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) SaveSnapshots(ctx context.Context, snapshots []*model.EloSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "club"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"elo"}),
	}).Create(snapshots).Error
}

func (r *snapshotRepository) LatestElo(ctx context.Context, club string, before time.Time) (*float64, error) {
	var snap model.EloSnapshot
	if err := r.db.WithContext(ctx).
		Where("club = ? AND date <= ?", club, before).
		Order("date DESC").First(&snap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snap.Elo, nil
}

func (r *snapshotRepository) Create(ctx context.Context, log *model.ChainCallLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

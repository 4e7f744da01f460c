package repository

import (
	"context"
	"errors"
	"time"

	"BetOracle/internal/model"

	"gorm.io/gorm"
)

// MatchRepository 比赛持久化。各同步阶段的工作集均按当前状态（+时间窗口）重新推导，
// 因此同一阶段重复执行天然幂等
type MatchRepository interface {
	Create(ctx context.Context, match *model.Match) error
	// SaveAll 批量保存一个阶段内变更的比赛（阶段末一次提交）
	SaveAll(ctx context.Context, matches []*model.Match) error
	GetByID(ctx context.Context, id uint64) (*model.Match, error)
	// GetByExternalID 不存在时返回 (nil, nil)
	GetByExternalID(ctx context.Context, externalID string) (*model.Match, error)
	ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
	// HasMatchesOnDate 指定日期（UTC自然日）是否已有比赛入库
	HasMatchesOnDate(ctx context.Context, day time.Time) (bool, error)
	ListByStatus(ctx context.Context, status model.PipelineStatus) ([]*model.Match, error)
	// ListOpenable 状态 OnChain 且距开赛仍超过 lead 的比赛
	ListOpenable(ctx context.Context, now time.Time, lead time.Duration) ([]*model.Match, error)
	// ListClosable 状态 Open 且已到开赛时间的比赛
	ListClosable(ctx context.Context, now time.Time) ([]*model.Match, error)
	// ListResolvable 状态 Closed 且开赛已超过 delay 的比赛
	ListResolvable(ctx context.Context, now time.Time, delay time.Duration) ([]*model.Match, error)
	// List 分页查询，status 为 nil 时不过滤
	List(ctx context.Context, status *model.PipelineStatus, page, pageSize int) ([]*model.Match, int64, error)
}

type matchRepository struct {
	db *gorm.DB
}

// NewMatchRepository 创建比赛仓储
func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) Create(ctx context.Context, match *model.Match) error {
	return r.db.WithContext(ctx).Create(match).Error
}

func (r *matchRepository) SaveAll(ctx context.Context, matches []*model.Match) error {
	if len(matches) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range matches {
			m.UpdatedAt = time.Now().UTC()
			if err := tx.Save(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *matchRepository) GetByID(ctx context.Context, id uint64) (*model.Match, error) {
	var m model.Match
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) GetByExternalID(ctx context.Context, externalID string) (*model.Match, error) {
	var m model.Match
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Match{}).
		Where("external_id = ?", externalID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *matchRepository) HasMatchesOnDate(ctx context.Context, day time.Time) (bool, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Match{}).
		Where("start_time >= ? AND start_time < ?", start, end).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *matchRepository) ListByStatus(ctx context.Context, status model.PipelineStatus) ([]*model.Match, error) {
	var list []*model.Match
	if err := r.db.WithContext(ctx).Where("status = ?", status).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) ListOpenable(ctx context.Context, now time.Time, lead time.Duration) ([]*model.Match, error) {
	var list []*model.Match
	if err := r.db.WithContext(ctx).
		Where("status = ? AND start_time > ?", model.StatusOnChain, now.Add(lead)).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) ListClosable(ctx context.Context, now time.Time) ([]*model.Match, error) {
	var list []*model.Match
	if err := r.db.WithContext(ctx).
		Where("status = ? AND start_time <= ?", model.StatusOpen, now).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) ListResolvable(ctx context.Context, now time.Time, delay time.Duration) ([]*model.Match, error) {
	var list []*model.Match
	if err := r.db.WithContext(ctx).
		Where("status = ? AND start_time <= ?", model.StatusClosed, now.Add(-delay)).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *matchRepository) List(ctx context.Context, status *model.PipelineStatus, page, pageSize int) ([]*model.Match, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.Match{})
	if status != nil {
		db = db.Where("status = ?", *status)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Match
	if err := db.Order("start_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"BetOracle/internal/model"

	"gorm.io/gorm"
)

// BetRepository 注单持久化。并发下单的互斥完全依赖存储层唯一约束
// （blockchain_tx_hash 与 (match_id, on_chain_index)），冲突以 gorm.ErrDuplicatedKey 浮出
type BetRepository interface {
	// Create 插入注单；唯一约束冲突返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, bet *model.Bet) error
	Save(ctx context.Context, bet *model.Bet) error
	// SaveAll 批量保存（对账/结算阶段末一次提交）
	SaveAll(ctx context.Context, bets []*model.Bet) error
	// GetByMatchAndIndex 不存在时返回 (nil, nil)
	GetByMatchAndIndex(ctx context.Context, matchID uint64, index int) (*model.Bet, error)
	ListByMatch(ctx context.Context, matchID uint64) ([]*model.Bet, error)
	ListByWallet(ctx context.Context, wallet string, page, pageSize int) ([]*model.Bet, int64, error)
	ExistsByTxHash(ctx context.Context, txHash string) (bool, error)
	// UsedIndexes 在候选下标中返回已被链下记录占用的那些
	UsedIndexes(ctx context.Context, matchID uint64, candidates []int) ([]int, error)
	// ListClaimable 指定比赛+钱包下状态为 Win 或 Refunded 的注单
	ListClaimable(ctx context.Context, matchID uint64, wallet string) ([]*model.Bet, error)
	AnyClaimed(ctx context.Context, matchID uint64, wallet string) (bool, error)
}

type betRepository struct {
	db *gorm.DB
}

// NewBetRepository 创建注单仓储
func NewBetRepository(db *gorm.DB) BetRepository {
	return &betRepository{db: db}
}

func (r *betRepository) Create(ctx context.Context, bet *model.Bet) error {
	return r.db.WithContext(ctx).Create(bet).Error
}

func (r *betRepository) Save(ctx context.Context, bet *model.Bet) error {
	bet.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Save(bet).Error
}

func (r *betRepository) SaveAll(ctx context.Context, bets []*model.Bet) error {
	if len(bets) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range bets {
			b.UpdatedAt = time.Now().UTC()
			if err := tx.Save(b).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *betRepository) GetByMatchAndIndex(ctx context.Context, matchID uint64, index int) (*model.Bet, error) {
	var b model.Bet
	if err := r.db.WithContext(ctx).
		Where("match_id = ? AND on_chain_index = ?", matchID, index).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *betRepository) ListByMatch(ctx context.Context, matchID uint64) ([]*model.Bet, error) {
	var list []*model.Bet
	if err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).Order("on_chain_index ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *betRepository) ListByWallet(ctx context.Context, wallet string, page, pageSize int) ([]*model.Bet, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	db := r.db.WithContext(ctx).Model(&model.Bet{}).Where("user_wallet = ?", wallet)
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.Bet
	if err := db.Order("bet_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *betRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Bet{}).
		Where("blockchain_tx_hash = ?", txHash).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *betRepository) UsedIndexes(ctx context.Context, matchID uint64, candidates []int) ([]int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var used []int
	if err := r.db.WithContext(ctx).Model(&model.Bet{}).
		Where("match_id = ? AND on_chain_index IN ?", matchID, candidates).
		Pluck("on_chain_index", &used).Error; err != nil {
		return nil, err
	}
	return used, nil
}

func (r *betRepository) ListClaimable(ctx context.Context, matchID uint64, wallet string) ([]*model.Bet, error) {
	var list []*model.Bet
	if err := r.db.WithContext(ctx).
		Where("match_id = ? AND user_wallet = ? AND status IN ?",
			matchID, wallet, []model.BetStatus{model.BetWin, model.BetRefunded}).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *betRepository) AnyClaimed(ctx context.Context, matchID uint64, wallet string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Bet{}).
		Where("match_id = ? AND user_wallet = ? AND status = ?", matchID, wallet, model.BetClaimed).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"BetOracle/internal/chain"
	"BetOracle/internal/model"
	"BetOracle/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateBetRequest 下注登记请求。客户端字段只用于交叉校验，
// 落库以链上解码结果为准
type CreateBetRequest struct {
	TxHash          string  `json:"tx_hash" binding:"required"`
	MatchExternalID string  `json:"match_external_id" binding:"required"`
	Wallet          string  `json:"wallet" binding:"required"`
	Pick            int     `json:"pick" binding:"required"`
	Amount          float64 `json:"amount" binding:"required"`
}

// BetService 下注登记：用户自行向合约发 placeBet 交易后，把交易哈希提交到这里，
// 服务端回查链上交易校验一致后建立链下记录。并发提交同一哈希的互斥靠唯一约束兜底
type BetService struct {
	verifier  chain.Verifier
	reconcile *Reconciler
	matches   repository.MatchRepository
	bets      repository.BetRepository
	logger    *logrus.Logger
}

// NewBetService 创建下注服务
func NewBetService(verifier chain.Verifier, reconcile *Reconciler,
	matches repository.MatchRepository, bets repository.BetRepository, logger *logrus.Logger) *BetService {
	return &BetService{verifier: verifier, reconcile: reconcile, matches: matches, bets: bets, logger: logger}
}

// Create 登记一笔下注。校验顺序：参数 → 哈希未被占用 → 链上交易解码一致 →
// 比赛存在且开盘中 → 找到链上注单下标 → 插入。
// 插入时的唯一约束冲突（哈希或下标被并发占用）返回冲突错误
func (s *BetService) Create(ctx context.Context, req *CreateBetRequest) (*model.Bet, error) {
	if req.Pick != 1 && req.Pick != 2 {
		return nil, NewValidationError("pick must be 1 (home) or 2 (away), got %d", req.Pick)
	}
	if req.Amount <= 0 {
		return nil, NewValidationError("amount must be positive, got %f", req.Amount)
	}

	exists, err := s.bets.ExistsByTxHash(ctx, req.TxHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, NewConflictError("transaction %s already registered", req.TxHash)
	}

	placement, err := s.verifier.VerifyPlaceBet(ctx, req.TxHash)
	if err != nil {
		return nil, NewValidationError("transaction verification failed: %v", err)
	}
	if !strings.EqualFold(placement.Wallet, req.Wallet) {
		return nil, NewValidationError("transaction sender %s does not match wallet %s", placement.Wallet, req.Wallet)
	}
	if placement.Pick != req.Pick {
		return nil, NewValidationError("transaction side %d does not match pick %d", placement.Pick, req.Pick)
	}
	if math.Abs(placement.Amount-req.Amount) > amountEpsilon {
		return nil, NewValidationError("transaction amount %f does not match %f", placement.Amount, req.Amount)
	}
	if placement.MatchExternalID != req.MatchExternalID {
		return nil, NewValidationError("transaction match %s does not match %s", placement.MatchExternalID, req.MatchExternalID)
	}

	match, err := s.matches.GetByExternalID(ctx, req.MatchExternalID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, NewValidationError("match %s not found", req.MatchExternalID)
	}
	if match.Status != model.StatusOpen {
		return nil, NewValidationError("match %s is not open for betting (status %s)", match.ExternalID, match.Status.String())
	}

	extID, ok := parseExternalID(match.ExternalID)
	if !ok {
		return nil, NewValidationError("match %s has non-numeric external id", match.ExternalID)
	}
	index, err := s.reconcile.AssignIndex(ctx, match, extID, placement)
	if err != nil {
		return nil, err
	}

	odds := match.OddsHome
	if placement.Pick == 2 {
		odds = match.OddsAway
	}
	txHash := req.TxHash
	bet := &model.Bet{
		BetUUID:          uuid.NewString(),
		UserWallet:       placement.Wallet,
		MatchID:          match.ID,
		Amount:           placement.Amount,
		PlayAmount:       0,
		OnChainIndex:     index,
		Pick:             placement.Pick,
		OddsAtMoment:     odds,
		BlockchainTxHash: &txHash,
		BetTime:          time.Now().UTC(),
		Status:           model.BetPlaced,
	}
	if err := s.bets.Create(ctx, bet); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, NewConflictError("bet for transaction %s already registered concurrently", req.TxHash)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"bet_uuid":    bet.BetUUID,
		"external_id": match.ExternalID,
		"wallet":      bet.UserWallet,
		"index":       index,
		"amount":      bet.Amount,
	}).Info("bet registered")
	return bet, nil
}

// ListByWallet 按钱包分页查注单（钱包统一小写存储）
func (s *BetService) ListByWallet(ctx context.Context, wallet string, page, pageSize int) ([]*model.Bet, int64, error) {
	return s.bets.ListByWallet(ctx, strings.ToLower(wallet), page, pageSize)
}

package service

import (
	"context"

	"BetOracle/internal/chain"
	"BetOracle/internal/model"
	"BetOracle/internal/repository"

	"github.com/sirupsen/logrus"
)

// ClaimResult 领取登记结果
type ClaimResult struct {
	Count          int  `json:"count"`           // 本次标记为已领取的注单数
	AlreadyClaimed bool `json:"already_claimed"` // 此前已登记过领取（幂等重放）
}

// ClaimService 领取登记：用户向合约发 claim 交易后提交哈希，
// 服务端校验后把该钱包在该场比赛下所有可领取注单（Win/Refunded）标记为 Claimed。
// 合约侧 claim 是一次领完，链下也按整场标记。重复提交按幂等成功处理
type ClaimService struct {
	verifier chain.Verifier
	matches  repository.MatchRepository
	bets     repository.BetRepository
	logger   *logrus.Logger
}

// NewClaimService 创建领取服务
func NewClaimService(verifier chain.Verifier, matches repository.MatchRepository,
	bets repository.BetRepository, logger *logrus.Logger) *ClaimService {
	return &ClaimService{verifier: verifier, matches: matches, bets: bets, logger: logger}
}

// Claim 登记一笔领取
func (s *ClaimService) Claim(ctx context.Context, txHash string) (*ClaimResult, error) {
	claim, err := s.verifier.VerifyClaim(ctx, txHash)
	if err != nil {
		return nil, NewValidationError("transaction verification failed: %v", err)
	}

	match, err := s.matches.GetByExternalID(ctx, claim.MatchExternalID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, NewValidationError("match %s not found", claim.MatchExternalID)
	}
	// 不检查比赛状态：claim 交易已在链上执行成功即为真值。退款注单在封盘后
	// 就可领取，链上已结算而链下状态尚未修正的窗口期也不应拒绝

	claimable, err := s.bets.ListClaimable(ctx, match.ID, claim.Wallet)
	if err != nil {
		return nil, err
	}
	if len(claimable) == 0 {
		claimed, err := s.bets.AnyClaimed(ctx, match.ID, claim.Wallet)
		if err != nil {
			return nil, err
		}
		if claimed {
			return &ClaimResult{Count: 0, AlreadyClaimed: true}, nil
		}
		return nil, NewValidationError("wallet %s has no claimable bets on match %s", claim.Wallet, match.ExternalID)
	}

	for _, b := range claimable {
		b.Status = model.BetClaimed
	}
	if err := s.bets.SaveAll(ctx, claimable); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"external_id": match.ExternalID,
		"wallet":      claim.Wallet,
		"count":       len(claimable),
	}).Info("claim registered")
	return &ClaimResult{Count: len(claimable)}, nil
}

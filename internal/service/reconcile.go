package service

import (
	"context"
	"math"
	"math/big"
	"sort"
	"strings"
	"time"

	"BetOracle/internal/chain"
	"BetOracle/internal/model"
	"BetOracle/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// 金额为 6 位定点转回的 float64，比较须带容差
const amountEpsilon = 1e-6

// Reconciler 注单对账：以链上注单列表为权威，把链下 bets 表收敛到它。
// (match_id, on_chain_index) 是两侧的连接键；链下缺失的条目补建，字段漂移的条目纠正。
// 对账是幂等的——两侧一致时不产生任何写入
type Reconciler struct {
	gateway chain.Gateway
	bets    repository.BetRepository
	logger  *logrus.Logger
}

// NewReconciler 创建对账器
func NewReconciler(gateway chain.Gateway, bets repository.BetRepository, logger *logrus.Logger) *Reconciler {
	return &Reconciler{gateway: gateway, bets: bets, logger: logger}
}

// SyncMatchBets 把一场比赛的链下注单收敛到链上列表。
// 链上读失败只记日志返回错误，不动已有记录；写入集中在比较完成后一次提交
func (r *Reconciler) SyncMatchBets(ctx context.Context, match *model.Match, externalID *big.Int) error {
	onChain, err := r.gateway.GetBetsByMatch(ctx, externalID)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"external_id": match.ExternalID,
			"error":       err.Error(),
		}).Warn("read on-chain bets failed, skip reconcile")
		return err
	}
	if len(onChain) == 0 {
		return nil
	}

	local, err := r.bets.ListByMatch(ctx, match.ID)
	if err != nil {
		return err
	}
	byIndex := make(map[int]*model.Bet, len(local))
	for _, b := range local {
		byIndex[b.OnChainIndex] = b
	}

	var dirty []*model.Bet
	created := 0
	for _, ob := range onChain {
		existing := byIndex[ob.Index]
		if existing == nil {
			// 链下缺失：用户直连合约下注而未走API，按链上数据补建，无交易哈希
			dirty = append(dirty, r.buildFromChain(match, ob))
			created++
			continue
		}
		if r.converge(existing, ob) {
			dirty = append(dirty, existing)
		}
	}

	if len(dirty) == 0 {
		return nil
	}
	if err := r.bets.SaveAll(ctx, dirty); err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{
		"external_id": match.ExternalID,
		"on_chain":    len(onChain),
		"created":     created,
		"updated":     len(dirty) - created,
	}).Info("bets reconciled")
	return nil
}

// converge 把链下记录字段纠正到链上值，返回是否发生变化
func (r *Reconciler) converge(bet *model.Bet, ob chain.OnChainBet) bool {
	changed := false
	if math.Abs(bet.Amount-ob.Amount) > amountEpsilon {
		bet.Amount = ob.Amount
		changed = true
	}
	if math.Abs(bet.PlayAmount-ob.PlayAmount) > amountEpsilon {
		bet.PlayAmount = ob.PlayAmount
		changed = true
	}
	if next := mergeBetStatus(bet.Status, ob); next != bet.Status {
		bet.Status = next
		changed = true
	}
	return changed
}

func (r *Reconciler) buildFromChain(match *model.Match, ob chain.OnChainBet) *model.Bet {
	odds := match.OddsHome
	if ob.Side == 2 {
		odds = match.OddsAway
	}
	return &model.Bet{
		BetUUID:      uuid.NewString(),
		UserWallet:   strings.ToLower(ob.User),
		MatchID:      match.ID,
		Amount:       ob.Amount,
		PlayAmount:   ob.PlayAmount,
		OnChainIndex: ob.Index,
		Pick:         int(ob.Side),
		OddsAtMoment: odds,
		BetTime:      time.Now().UTC(),
		Status:       mergeBetStatus(model.BetPlaced, ob),
	}
}

// mergeBetStatus 合并链上注单状态与链下状态。Refunded/Claimed 以链上为准；
// 已定的输赢不被覆盖（Win/Lose 是结算产物，合约不知道）。
// 状态字节未及更新（如仍为 Placed）时按撮合金额推导：封盘后有撮合即 Matched，无则退款
func mergeBetStatus(current model.BetStatus, ob chain.OnChainBet) model.BetStatus {
	if current == model.BetWin || current == model.BetLose || current == model.BetClaimed {
		if ob.Status == uint8(model.BetClaimed) {
			return model.BetClaimed
		}
		return current
	}
	switch ob.Status {
	case uint8(model.BetClaimed):
		return model.BetClaimed
	case uint8(model.BetRefunded):
		return model.BetRefunded
	case uint8(model.BetMatched):
		return model.BetMatched
	default:
		if ob.PlayAmount > amountEpsilon {
			return model.BetMatched
		}
		return model.BetRefunded
	}
}

// AssignIndex 为一笔已验证的下注交易找出它在合约注单列表中的位置。
// 候选：同钱包（大小写无关）、同方向、金额容差内相等的链上条目；
// 取其中未被链下记录占用的最小下标。读失败或暂无候选按可重试的校验失败处理
// （下注交易刚上链，列表可能尚未反映）；候选全被占用则是实打实的冲突
func (r *Reconciler) AssignIndex(ctx context.Context, match *model.Match, externalID *big.Int, p *chain.VerifiedPlacement) (int, error) {
	onChain, err := r.gateway.GetBetsByMatch(ctx, externalID)
	if err != nil {
		return 0, NewValidationError("on-chain bets not readable yet, retry later: %v", err)
	}

	var candidates []int
	for _, ob := range onChain {
		if !strings.EqualFold(ob.User, p.Wallet) {
			continue
		}
		if int(ob.Side) != p.Pick {
			continue
		}
		if math.Abs(ob.Amount-p.Amount) > amountEpsilon {
			continue
		}
		candidates = append(candidates, ob.Index)
	}
	if len(candidates) == 0 {
		return 0, NewValidationError("no matching on-chain bet for wallet %s on match %s, retry later", p.Wallet, match.ExternalID)
	}

	used, err := r.bets.UsedIndexes(ctx, match.ID, candidates)
	if err != nil {
		return 0, err
	}
	usedSet := make(map[int]struct{}, len(used))
	for _, idx := range used {
		usedSet[idx] = struct{}{}
	}

	sort.Ints(candidates)
	for _, idx := range candidates {
		if _, ok := usedSet[idx]; !ok {
			return idx, nil
		}
	}
	return 0, NewConflictError("all %d matching on-chain bets already linked for wallet %s on match %s",
		len(candidates), p.Wallet, match.ExternalID)
}

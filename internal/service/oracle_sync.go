package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"BetOracle/internal/chain"
	"BetOracle/internal/config"
	"BetOracle/internal/model"
	"BetOracle/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// OracleSyncService 链上同步：把链下流水线推进到链上（create→open→close→resolve），
// 每个阶段的工作集按当前状态重新推导，单场失败只跳过该场。
// 链上回报状态时一律用 MapChainStatus 覆盖链下状态，冲突视为权威纠正而非错误
type OracleSyncService struct {
	gateway   chain.Gateway
	matches   repository.MatchRepository
	bets      repository.BetRepository
	chainLogs repository.ChainLogRepository
	matchData MatchDataProvider
	reconcile *Reconciler
	cfg       config.SyncConfig
	logger    *logrus.Logger
}

// NewOracleSyncService 创建链上同步服务
func NewOracleSyncService(
	gateway chain.Gateway,
	matches repository.MatchRepository,
	bets repository.BetRepository,
	chainLogs repository.ChainLogRepository,
	matchData MatchDataProvider,
	reconcile *Reconciler,
	cfg config.SyncConfig,
	logger *logrus.Logger,
) *OracleSyncService {
	return &OracleSyncService{
		gateway:   gateway,
		matches:   matches,
		bets:      bets,
		chainLogs: chainLogs,
		matchData: matchData,
		reconcile: reconcile,
		cfg:       cfg,
		logger:    logger,
	}
}

// Sync 执行一轮完整同步。各阶段串行，阶段内部单场出错不中断；
// 阶段自身的查询错误向上返回由调度器记日志
func (s *OracleSyncService) Sync(ctx context.Context) error {
	if err := s.createOnChain(ctx); err != nil {
		return fmt.Errorf("create phase: %w", err)
	}
	if err := s.openMatches(ctx); err != nil {
		return fmt.Errorf("open phase: %w", err)
	}
	if err := s.closeMatches(ctx); err != nil {
		return fmt.Errorf("close phase: %w", err)
	}
	if err := s.resolveMatches(ctx); err != nil {
		return fmt.Errorf("resolve phase: %w", err)
	}
	if err := s.reconcileBets(ctx); err != nil {
		return fmt.Errorf("reconcile phase: %w", err)
	}
	return nil
}

// createOnChain 把 ReadyForChain 的比赛创建到合约。已存在按成功处理（幂等重放）
func (s *OracleSyncService) createOnChain(ctx context.Context) error {
	list, err := s.matches.ListByStatus(ctx, model.StatusReadyForChain)
	if err != nil {
		return err
	}
	var dirty []*model.Match
	for _, m := range list {
		extID, ok := parseExternalID(m.ExternalID)
		if !ok {
			s.logger.WithField("external_id", m.ExternalID).Warn("non-numeric external id, cannot address on chain")
			continue
		}
		resp := s.gateway.CreateMatch(ctx, extID, m.OddsHome, m.OddsAway)
		s.logCall(ctx, "create", m.ExternalID, resp)
		switch resp.Result {
		case chain.TxSent, chain.TxAlreadyExists:
			next := statusFromResponse(resp, model.StatusOnChain)
			if next != m.Status {
				m.Status = next
				dirty = append(dirty, m)
			}
		default:
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"result":      resp.Result.String(),
			}).Warn("createMatch failed, will retry next cycle")
		}
	}
	return s.matches.SaveAll(ctx, dirty)
}

// openMatches 开盘距开赛仍有足够提前量的比赛。窗口不足的比赛永不开盘，
// 留在 OnChain 直到封盘阶段也无事可做
func (s *OracleSyncService) openMatches(ctx context.Context) error {
	lead := time.Duration(s.cfg.OpenLeadMin) * time.Minute
	list, err := s.matches.ListOpenable(ctx, time.Now().UTC(), lead)
	if err != nil {
		return err
	}
	return s.transition(ctx, list, "open", model.StatusOpen, func(extID *big.Int) chain.TxResponse {
		return s.gateway.OpenMatch(ctx, extID)
	})
}

// closeMatches 封盘已到开赛时间的比赛
func (s *OracleSyncService) closeMatches(ctx context.Context) error {
	list, err := s.matches.ListClosable(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	return s.transition(ctx, list, "close", model.StatusClosed, func(extID *big.Int) chain.TxResponse {
		return s.gateway.CloseMatch(ctx, extID)
	})
}

// transition 执行一批同类状态转移。BadStatus 不是错误：链上已经走到别处，
// 取回查状态覆盖链下即可；回查也失败时保持原状态，留待下个周期
func (s *OracleSyncService) transition(ctx context.Context, list []*model.Match, phase string,
	target model.PipelineStatus, call func(*big.Int) chain.TxResponse) error {
	var dirty []*model.Match
	for _, m := range list {
		extID, ok := parseExternalID(m.ExternalID)
		if !ok {
			s.logger.WithField("external_id", m.ExternalID).Warn("non-numeric external id, cannot address on chain")
			continue
		}
		resp := call(extID)
		s.logCall(ctx, phase, m.ExternalID, resp)
		switch resp.Result {
		case chain.TxSent:
			next := statusFromResponse(resp, target)
			if next != m.Status {
				m.Status = next
				dirty = append(dirty, m)
			}
		case chain.TxBadStatus:
			if resp.Status == nil {
				s.logger.WithFields(logrus.Fields{
					"external_id": m.ExternalID,
					"phase":       phase,
				}).Warn("bad status on chain but re-query failed, keep local state")
				continue
			}
			next := model.MapChainStatus(*resp.Status)
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"phase":       phase,
				"local":       m.Status.String(),
				"on_chain":    next.String(),
			}).Info("chain state ahead of local, correcting")
			if next != m.Status {
				m.Status = next
				dirty = append(dirty, m)
			}
		default:
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"phase":       phase,
				"result":      resp.Result.String(),
			}).Warn("transition failed, will retry next cycle")
		}
	}
	return s.matches.SaveAll(ctx, dirty)
}

// resolveMatches 结算开赛已超过延迟窗口的比赛。赛果取自赛程源完场数据：
// 未完场跳过；平局按合约语义退款（resolve(0)），两向注单在对账阶段收敛为 Refunded
func (s *OracleSyncService) resolveMatches(ctx context.Context) error {
	delay := time.Duration(s.cfg.ResolveDelayMin) * time.Minute
	list, err := s.matches.ListResolvable(ctx, time.Now().UTC(), delay)
	if err != nil {
		return err
	}
	var dirty []*model.Match
	for _, m := range list {
		extID, ok := parseExternalID(m.ExternalID)
		if !ok {
			s.logger.WithField("external_id", m.ExternalID).Warn("non-numeric external id, cannot address on chain")
			continue
		}
		result, err := s.matchData.Result(ctx, m.ExternalID)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"error":       err.Error(),
			}).Warn("fetch match result failed, will retry next cycle")
			continue
		}
		if result == nil || !result.Finished {
			continue
		}
		outcome := outcomeFromGoals(result.HomeGoals, result.AwayGoals)
		if s.resolveOnChain(ctx, m, extID, outcome) {
			dirty = append(dirty, m)
		}
	}
	return s.matches.SaveAll(ctx, dirty)
}

// resolveOnChain 执行单场结算并结算链下注单，返回比赛记录是否有变更
func (s *OracleSyncService) resolveOnChain(ctx context.Context, m *model.Match, extID *big.Int, outcome uint8) bool {
	resp := s.gateway.ResolveMatch(ctx, extID, outcome)
	s.logCall(ctx, "resolve", m.ExternalID, resp)
	switch resp.Result {
	case chain.TxSent:
	case chain.TxBadStatus:
		// 链上已 Resolved（此前结算过但链下没记上），继续走结算落库
		if resp.Status == nil || *resp.Status != model.ChainResolved {
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"result":      resp.Result.String(),
			}).Warn("resolve rejected by contract, keep local state")
			return false
		}
	default:
		s.logger.WithFields(logrus.Fields{
			"external_id": m.ExternalID,
			"result":      resp.Result.String(),
		}).Warn("resolve failed, will retry next cycle")
		return false
	}

	text := model.ResultText(outcome)
	m.Status = model.StatusResolved
	m.Result = &text
	if err := s.settleBets(ctx, m, outcome); err != nil {
		s.logger.WithFields(logrus.Fields{
			"external_id": m.ExternalID,
			"error":       err.Error(),
		}).Error("settle bets failed")
	}
	return true
}

// settleBets 按赛果把该场 Matched 注单落定为 Win/Lose。
// 平局不在这里处理：合约退款后注单经对账收敛为 Refunded
func (s *OracleSyncService) settleBets(ctx context.Context, m *model.Match, outcome uint8) error {
	if outcome != model.OutcomeHome && outcome != model.OutcomeAway {
		return nil
	}
	bets, err := s.bets.ListByMatch(ctx, m.ID)
	if err != nil {
		return err
	}
	var dirty []*model.Bet
	for _, b := range bets {
		if b.Status != model.BetMatched {
			continue
		}
		if b.Pick == int(outcome) {
			b.Status = model.BetWin
		} else {
			b.Status = model.BetLose
		}
		dirty = append(dirty, b)
	}
	return s.bets.SaveAll(ctx, dirty)
}

// reconcileBets 对封盘及之后阶段的比赛执行注单对账（领取状态在结算后仍会变化）。
// 开盘中的比赛不对账：补建无哈希记录会占住链上下标，用户随后的正常登记就再也挂不上了
func (s *OracleSyncService) reconcileBets(ctx context.Context) error {
	for _, status := range []model.PipelineStatus{model.StatusClosed, model.StatusResolved} {
		list, err := s.matches.ListByStatus(ctx, status)
		if err != nil {
			return err
		}
		for _, m := range list {
			extID, ok := parseExternalID(m.ExternalID)
			if !ok {
				continue
			}
			if err := s.reconcile.SyncMatchBets(ctx, m, extID); err != nil {
				// 已在对账器内记日志，单场失败不中断
				continue
			}
		}
	}
	return nil
}

// CloseOne 手动封盘单场比赛（管理接口），不受开赛时间窗口约束
func (s *OracleSyncService) CloseOne(ctx context.Context, externalID string) (*model.Match, error) {
	return s.advanceOne(ctx, externalID, "close", model.StatusClosed, func(extID *big.Int) chain.TxResponse {
		return s.gateway.CloseMatch(ctx, extID)
	})
}

// ResolveOne 手动结算单场比赛（管理接口），赛果由调用方给定，仅接受主胜/客胜
func (s *OracleSyncService) ResolveOne(ctx context.Context, externalID string, result uint8) (*model.Match, error) {
	if result != model.OutcomeHome && result != model.OutcomeAway {
		return nil, NewValidationError("result must be 1 (home) or 2 (away), got %d", result)
	}
	m, err := s.matches.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, NewValidationError("match %s not found", externalID)
	}
	extID, ok := parseExternalID(externalID)
	if !ok {
		return nil, NewValidationError("match %s has non-numeric external id", externalID)
	}
	if !s.resolveOnChain(ctx, m, extID, result) {
		return nil, &ChainCallError{Op: "resolveMatch"}
	}
	if err := s.matches.SaveAll(ctx, []*model.Match{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// advanceOne 手动推进单场比赛到目标状态
func (s *OracleSyncService) advanceOne(ctx context.Context, externalID, phase string,
	target model.PipelineStatus, call func(*big.Int) chain.TxResponse) (*model.Match, error) {
	m, err := s.matches.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, NewValidationError("match %s not found", externalID)
	}
	extID, ok := parseExternalID(externalID)
	if !ok {
		return nil, NewValidationError("match %s has non-numeric external id", externalID)
	}
	resp := call(extID)
	s.logCall(ctx, phase, externalID, resp)
	switch resp.Result {
	case chain.TxSent:
		m.Status = statusFromResponse(resp, target)
	case chain.TxBadStatus:
		if resp.Status == nil {
			return nil, NewConflictError("contract rejected %s for match %s", phase, externalID)
		}
		m.Status = model.MapChainStatus(*resp.Status)
	default:
		return nil, &ChainCallError{Op: phase + "Match"}
	}
	if err := s.matches.SaveAll(ctx, []*model.Match{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// logCall 落一条链上调用审计记录，失败只记日志不影响主流程
func (s *OracleSyncService) logCall(ctx context.Context, phase, externalID string, resp chain.TxResponse) {
	payload, _ := json.Marshal(map[string]interface{}{
		"result":  resp.Result.String(),
		"tx_hash": resp.TxHash,
		"status":  resp.Status,
	})
	entry := &model.ChainCallLog{
		Phase:      phase,
		ExternalID: externalID,
		Result:     resp.Result.String(),
		Payload:    datatypes.JSON(payload),
	}
	if resp.TxHash != "" {
		h := resp.TxHash
		entry.TxHash = &h
	}
	if err := s.chainLogs.Create(ctx, entry); err != nil {
		s.logger.WithField("error", err.Error()).Warn("write chain call log failed")
	}
}

// statusFromResponse 取链上回报状态映射后的流水线状态，链上未回报时用 fallback
func statusFromResponse(resp chain.TxResponse, fallback model.PipelineStatus) model.PipelineStatus {
	if resp.Status != nil {
		return model.MapChainStatus(*resp.Status)
	}
	return fallback
}

// outcomeFromGoals 比分转为合约结算参数：1=主胜 2=客胜 0=平（合约退款）
func outcomeFromGoals(homeGoals, awayGoals int) uint8 {
	switch {
	case homeGoals > awayGoals:
		return model.OutcomeHome
	case awayGoals > homeGoals:
		return model.OutcomeAway
	default:
		return model.OutcomeDraw
	}
}

// parseExternalID 外部ID转为合约 uint256。赛程源ID均为十进制数字，非数字无法上链寻址
func parseExternalID(externalID string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(externalID, 10)
	if !ok || v.Sign() < 0 {
		return nil, false
	}
	return v, true
}

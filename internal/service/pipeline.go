package service

import (
	"context"
	"fmt"
	"time"

	"BetOracle/internal/config"
	"BetOracle/internal/model"
	"BetOracle/internal/repository"

	"github.com/sirupsen/logrus"
)

// 赔率出链前的合法区间，越界视为预测服务异常，不放行上链
const (
	minValidOdds = 1.01
	maxValidOdds = 100.0
)

// PipelineService 赛程流水线：拉取次日赛程 → 按 Elo 特征请求赔率预测 →
// 校验通过后标记 ReadyForChain（之后交给链上同步）。
// 每步只消费上一步的状态，重复执行不产生重复记录
type PipelineService struct {
	matchData MatchDataProvider
	predictor OddsPredictor
	elo       EloProvider
	matches   repository.MatchRepository
	eloRepo   repository.EloRepository
	cfg       config.SyncConfig
	logger    *logrus.Logger
}

// NewPipelineService 创建赛程流水线服务
func NewPipelineService(
	matchData MatchDataProvider,
	predictor OddsPredictor,
	elo EloProvider,
	matches repository.MatchRepository,
	eloRepo repository.EloRepository,
	cfg config.SyncConfig,
	logger *logrus.Logger,
) *PipelineService {
	return &PipelineService{
		matchData: matchData,
		predictor: predictor,
		elo:       elo,
		matches:   matches,
		eloRepo:   eloRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run 执行一轮流水线
func (s *PipelineService) Run(ctx context.Context) error {
	if err := s.FetchUpcoming(ctx); err != nil {
		return fmt.Errorf("fetch phase: %w", err)
	}
	if err := s.CalculateOdds(ctx); err != nil {
		return fmt.Errorf("odds phase: %w", err)
	}
	if err := s.promoteReady(ctx); err != nil {
		return fmt.Errorf("promote phase: %w", err)
	}
	return nil
}

// FetchUpcoming 拉取次日（UTC）赛程入库。当日已有比赛入库时整批跳过，
// 避免每个周期重复打赛程源
func (s *PipelineService) FetchUpcoming(ctx context.Context) error {
	day := time.Now().UTC().Add(24 * time.Hour)
	has, err := s.matches.HasMatchesOnDate(ctx, day)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	upcoming, err := s.matchData.UpcomingMatches(ctx, day)
	if err != nil {
		return err
	}
	if limit := s.cfg.FetchMatchLimit; limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}

	created := 0
	for _, u := range upcoming {
		exists, err := s.matches.ExistsByExternalID(ctx, u.ExternalID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		m := &model.Match{
			ExternalID: u.ExternalID,
			HomeTeam:   u.HomeTeam,
			AwayTeam:   u.AwayTeam,
			StartTime:  u.StartTime.UTC(),
			Status:     model.StatusFetched,
		}
		if err := s.matches.Create(ctx, m); err != nil {
			return err
		}
		created++
	}
	if created > 0 {
		s.logger.WithFields(logrus.Fields{
			"day":     day.Format("2006-01-02"),
			"created": created,
		}).Info("upcoming matches fetched")
	}
	return nil
}

// CalculateOdds 为 Fetched 的比赛计算赔率。任一队缺 Elo 快照或预测服务出错时
// 跳过该场（留在 Fetched 等下个周期），不中断整批
func (s *PipelineService) CalculateOdds(ctx context.Context) error {
	list, err := s.matches.ListByStatus(ctx, model.StatusFetched)
	if err != nil {
		return err
	}
	var dirty []*model.Match
	for _, m := range list {
		eloHome, err := s.eloRepo.LatestElo(ctx, NormalizeTeamName(m.HomeTeam), m.StartTime)
		if err != nil {
			return err
		}
		eloAway, err := s.eloRepo.LatestElo(ctx, NormalizeTeamName(m.AwayTeam), m.StartTime)
		if err != nil {
			return err
		}
		if eloHome == nil || eloAway == nil {
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"home":        m.HomeTeam,
				"away":        m.AwayTeam,
			}).Warn("elo snapshot missing, skip odds calculation")
			continue
		}

		pred, err := s.predictor.Predict(ctx, OddsFeatures{
			HomeTeam: m.HomeTeam,
			AwayTeam: m.AwayTeam,
			EloHome:  *eloHome,
			EloAway:  *eloAway,
		})
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"error":       err.Error(),
			}).Warn("odds prediction failed, will retry next cycle")
			continue
		}
		m.OddsHome = pred.OddsHome
		m.OddsAway = pred.OddsAway
		m.Status = model.StatusOddsCalculated
		dirty = append(dirty, m)
	}
	return s.matches.SaveAll(ctx, dirty)
}

// promoteReady 校验已算出的赔率并放行上链。越界赔率退回 Fetched 重算
func (s *PipelineService) promoteReady(ctx context.Context) error {
	list, err := s.matches.ListByStatus(ctx, model.StatusOddsCalculated)
	if err != nil {
		return err
	}
	var dirty []*model.Match
	for _, m := range list {
		if !validOdds(m.OddsHome) || !validOdds(m.OddsAway) {
			s.logger.WithFields(logrus.Fields{
				"external_id": m.ExternalID,
				"odds_home":   m.OddsHome,
				"odds_away":   m.OddsAway,
			}).Warn("odds out of range, back to fetched")
			m.OddsHome = 0
			m.OddsAway = 0
			m.Status = model.StatusFetched
		} else {
			m.Status = model.StatusReadyForChain
		}
		dirty = append(dirty, m)
	}
	return s.matches.SaveAll(ctx, dirty)
}

func validOdds(odds float64) bool {
	return odds >= minValidOdds && odds <= maxValidOdds
}

// IngestElo 拉取当日全量球队 Elo 评分并按归一化名称落快照
func (s *PipelineService) IngestElo(ctx context.Context) error {
	day := time.Now().UTC()
	ratings, err := s.elo.Ratings(ctx, day)
	if err != nil {
		return err
	}
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	snapshots := make([]*model.EloSnapshot, 0, len(ratings))
	for _, r := range ratings {
		snapshots = append(snapshots, &model.EloSnapshot{
			Club: NormalizeTeamName(r.Club),
			Date: date,
			Elo:  r.Elo,
		})
	}
	if err := s.eloRepo.SaveSnapshots(ctx, snapshots); err != nil {
		return err
	}
	s.logger.WithField("count", len(snapshots)).Info("elo snapshots ingested")
	return nil
}

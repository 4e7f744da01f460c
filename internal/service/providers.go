package service

import (
	"context"
	"time"
)

// 服务层依赖的外部数据能力，接口定义在使用方。
// 生产实现在 internal/football、internal/ml、internal/elo

// UpcomingMatch 赛程源的一场未开赛比赛
type UpcomingMatch struct {
	ExternalID string
	HomeTeam   string
	AwayTeam   string
	StartTime  time.Time
}

// MatchResult 赛程源的完场结果，胜负由比分推导
type MatchResult struct {
	ExternalID string
	Finished   bool
	HomeGoals  int
	AwayGoals  int
}

// MatchDataProvider 赛程数据源（football-data.org）
type MatchDataProvider interface {
	// UpcomingMatches 指定UTC日期的赛程
	UpcomingMatches(ctx context.Context, day time.Time) ([]UpcomingMatch, error)
	// Result 单场完场结果，未完场时 Finished=false
	Result(ctx context.Context, externalID string) (*MatchResult, error)
}

// OddsFeatures 赔率预测输入
type OddsFeatures struct {
	HomeTeam string
	AwayTeam string
	EloHome  float64
	EloAway  float64
}

// OddsPrediction 赔率预测输出（欧赔，含平局概率折算后的两向赔率）
type OddsPrediction struct {
	OddsHome float64
	OddsAway float64
}

// OddsPredictor 赔率预测服务（ML HTTP 服务）
type OddsPredictor interface {
	Predict(ctx context.Context, features OddsFeatures) (*OddsPrediction, error)
}

// EloRating 一条球队评分
type EloRating struct {
	Club string
	Elo  float64
}

// EloProvider Elo 评分数据源（clubelo CSV 接口）
type EloProvider interface {
	// Ratings 指定日期的全量球队评分
	Ratings(ctx context.Context, day time.Time) ([]EloRating, error)
}

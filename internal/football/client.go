package football

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"BetOracle/internal/config"
	"BetOracle/internal/service"
	"BetOracle/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Client football-data.org v4 客户端，提供赛程与完场结果
type Client struct {
	http        *http.Client
	baseURL     string
	token       string
	competition string
	logger      *logrus.Logger
}

var _ service.MatchDataProvider = (*Client)(nil)

// NewClient 创建赛程源客户端
func NewClient(cfg *config.FeedConfig, logger *logrus.Logger) *Client {
	return &Client{
		http:        httpclient.NewHTTPClient(cfg, logger),
		baseURL:     cfg.BaseURL,
		token:       cfg.AuthToken,
		competition: cfg.Competition,
		logger:      logger,
	}
}

// 赛程接口响应结构（只取用到的字段）
type matchesResponse struct {
	Matches []matchPayload `json:"matches"`
}

type matchPayload struct {
	ID       int64     `json:"id"`
	UTCDate  time.Time `json:"utcDate"`
	Status   string    `json:"status"`
	HomeTeam teamRef   `json:"homeTeam"`
	AwayTeam teamRef   `json:"awayTeam"`
	Score    scoreRef  `json:"score"`
}

type teamRef struct {
	Name string `json:"name"`
}

type scoreRef struct {
	FullTime goalsRef `json:"fullTime"`
}

type goalsRef struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// UpcomingMatches 指定UTC日期的未开赛赛程（SCHEDULED/TIMED）
func (c *Client) UpcomingMatches(ctx context.Context, day time.Time) ([]service.UpcomingMatch, error) {
	date := day.UTC().Format("2006-01-02")
	url := fmt.Sprintf("%s/v4/competitions/%s/matches?dateFrom=%s&dateTo=%s",
		c.baseURL, c.competition, date, date)

	var payload matchesResponse
	if err := c.get(ctx, url, &payload); err != nil {
		return nil, err
	}

	out := make([]service.UpcomingMatch, 0, len(payload.Matches))
	for _, m := range payload.Matches {
		if m.Status != "SCHEDULED" && m.Status != "TIMED" {
			continue
		}
		out = append(out, service.UpcomingMatch{
			ExternalID: strconv.FormatInt(m.ID, 10),
			HomeTeam:   m.HomeTeam.Name,
			AwayTeam:   m.AwayTeam.Name,
			StartTime:  m.UTCDate,
		})
	}
	c.logger.WithFields(logrus.Fields{
		"date":  date,
		"count": len(out),
	}).Debug("upcoming matches fetched from football-data")
	return out, nil
}

// Result 单场完场结果，未完场时 Finished=false
func (c *Client) Result(ctx context.Context, externalID string) (*service.MatchResult, error) {
	url := fmt.Sprintf("%s/v4/matches/%s", c.baseURL, externalID)

	var m matchPayload
	if err := c.get(ctx, url, &m); err != nil {
		return nil, err
	}
	return &service.MatchResult{
		ExternalID: externalID,
		Finished:   m.Status == "FINISHED",
		HomeGoals:  m.Score.FullTime.Home,
		AwayGoals:  m.Score.FullTime.Away,
	}, nil
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求赛程源失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("赛程源返回异常状态码: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析赛程源响应失败: %w", err)
	}
	return nil
}

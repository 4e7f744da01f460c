package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"BetOracle/internal/config"
	"BetOracle/internal/service"
	"BetOracle/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Client 赔率预测服务客户端（内部ML HTTP服务）
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *logrus.Logger
}

var _ service.OddsPredictor = (*Client)(nil)

// NewClient 创建赔率预测客户端
func NewClient(cfg *config.FeedConfig, logger *logrus.Logger) *Client {
	return &Client{
		http:    httpclient.NewHTTPClient(cfg, logger),
		baseURL: cfg.BaseURL,
		token:   cfg.AuthToken,
		logger:  logger,
	}
}

type predictRequest struct {
	HomeTeam string  `json:"home_team"`
	AwayTeam string  `json:"away_team"`
	EloHome  float64 `json:"elo_home"`
	EloAway  float64 `json:"elo_away"`
}

type predictResponse struct {
	OddsHome float64 `json:"odds_home"`
	OddsAway float64 `json:"odds_away"`
}

// Predict 请求一场比赛的两向赔率
func (c *Client) Predict(ctx context.Context, features service.OddsFeatures) (*service.OddsPrediction, error) {
	body, err := json.Marshal(predictRequest{
		HomeTeam: features.HomeTeam,
		AwayTeam: features.AwayTeam,
		EloHome:  features.EloHome,
		EloAway:  features.EloAway,
	})
	if err != nil {
		return nil, fmt.Errorf("序列化预测请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求预测服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("预测服务返回异常状态码: %d", resp.StatusCode)
	}
	var payload predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("解析预测响应失败: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"home":      features.HomeTeam,
		"away":      features.AwayTeam,
		"odds_home": payload.OddsHome,
		"odds_away": payload.OddsAway,
	}).Debug("odds predicted")
	return &service.OddsPrediction{OddsHome: payload.OddsHome, OddsAway: payload.OddsAway}, nil
}

package elo

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"BetOracle/internal/config"
	"BetOracle/internal/service"
	"BetOracle/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// Client clubelo.com 客户端。接口按日期返回全量球队评分的CSV
type Client struct {
	http    *http.Client
	baseURL string
	logger  *logrus.Logger
}

var _ service.EloProvider = (*Client)(nil)

// NewClient 创建Elo数据源客户端
func NewClient(cfg *config.FeedConfig, logger *logrus.Logger) *Client {
	return &Client{
		http:    httpclient.NewHTTPClient(cfg, logger),
		baseURL: cfg.BaseURL,
		logger:  logger,
	}
}

// Ratings 指定日期的全量球队评分。
// CSV列：Rank,Club,Country,Level,Elo,From,To；无法解析的行跳过
func (c *Client) Ratings(ctx context.Context, day time.Time) ([]service.EloRating, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, day.UTC().Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求Elo源失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Elo源返回异常状态码: %d", resp.StatusCode)
	}
	return c.parseCSV(resp.Body)
}

func (c *Client) parseCSV(r io.Reader) ([]service.EloRating, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取CSV表头失败: %w", err)
	}
	clubCol, eloCol := -1, -1
	for i, name := range header {
		switch name {
		case "Club":
			clubCol = i
		case "Elo":
			eloCol = i
		}
	}
	if clubCol < 0 || eloCol < 0 {
		return nil, fmt.Errorf("CSV缺少 Club/Elo 列: %v", header)
	}

	var out []service.EloRating
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取CSV行失败: %w", err)
		}
		if len(row) <= clubCol || len(row) <= eloCol {
			skipped++
			continue
		}
		elo, err := strconv.ParseFloat(row[eloCol], 64)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, service.EloRating{Club: row[clubCol], Elo: elo})
	}
	if skipped > 0 {
		c.logger.WithField("skipped", skipped).Warn("部分Elo行无法解析，已跳过")
	}
	return out, nil
}

package api

import (
	"math/big"
	"net/http"
	"strconv"

	"BetOracle/internal/chain"
	"BetOracle/internal/model"
	"BetOracle/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MatchHandler 提供给前端的比赛查询接口
type MatchHandler struct {
	matches repository.MatchRepository
	bets    repository.BetRepository
	gateway chain.Gateway
	logger  *logrus.Logger
}

// NewMatchHandler 创建 MatchHandler
func NewMatchHandler(db *gorm.DB, gateway chain.Gateway, logger *logrus.Logger) *MatchHandler {
	return &MatchHandler{
		matches: repository.NewMatchRepository(db),
		bets:    repository.NewBetRepository(db),
		gateway: gateway,
		logger:  logger,
	}
}

// ListMatches 比赛列表接口
// GET /api/matches?status=4&page=1&page_size=20
func (h *MatchHandler) ListMatches(c *gin.Context) {
	var status *model.PipelineStatus
	if raw := c.Query("status"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < int(model.StatusFetched) || v > int(model.StatusResolved) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + raw})
			return
		}
		s := model.PipelineStatus(v)
		status = &s
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	matches, total, err := h.matches.List(c.Request.Context(), status, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("ListMatches failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"page":    page,
		"matches": matches,
	})
}

// GetMatchDetail 比赛详情：链下记录 + 注单列表 + 链上实时状态。
// 链上读失败时降级为 chain=null，不影响链下部分返回
// GET /api/matches/:external_id
func (h *MatchHandler) GetMatchDetail(c *gin.Context) {
	externalID := c.Param("external_id")
	match, err := h.matches.GetByExternalID(c.Request.Context(), externalID)
	if err != nil {
		h.logger.WithError(err).Error("GetMatchDetail failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if match == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found: " + externalID})
		return
	}

	bets, err := h.bets.ListByMatch(c.Request.Context(), match.ID)
	if err != nil {
		h.logger.WithError(err).Error("GetMatchDetail list bets failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var chainState *chain.MatchState
	if extID, ok := new(big.Int).SetString(externalID, 10); ok {
		chainState, err = h.gateway.GetMatch(c.Request.Context(), extID)
		if err != nil {
			h.logger.WithError(err).WithField("external_id", externalID).Warn("read on-chain match failed")
			chainState = nil
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"match": match,
		"bets":  bets,
		"chain": chainState,
	})
}

package api

import (
	"net/http"
	"strconv"

	"BetOracle/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// BetHandler 下注登记与查询接口
type BetHandler struct {
	betService *service.BetService
	logger     *logrus.Logger
}

// NewBetHandler 创建 BetHandler
func NewBetHandler(betService *service.BetService, logger *logrus.Logger) *BetHandler {
	return &BetHandler{betService: betService, logger: logger}
}

// CreateBet 下注登记接口：用户发完 placeBet 交易后提交哈希
// POST /api/bets
func (h *BetHandler) CreateBet(c *gin.Context) {
	var req service.CreateBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	bet, err := h.betService.Create(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, h.logger, "CreateBet", err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

// ListBets 按钱包查注单
// GET /api/bets?wallet=0x...&page=1&page_size=20
func (h *BetHandler) ListBets(c *gin.Context) {
	wallet := c.Query("wallet")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wallet is required"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	bets, total, err := h.betService.ListByWallet(c.Request.Context(), wallet, page, pageSize)
	if err != nil {
		writeServiceError(c, h.logger, "ListBets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total": total,
		"page":  page,
		"bets":  bets,
	})
}

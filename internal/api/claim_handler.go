package api

import (
	"net/http"

	"BetOracle/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ClaimHandler 领取登记接口
type ClaimHandler struct {
	claimService *service.ClaimService
	logger       *logrus.Logger
}

// NewClaimHandler 创建 ClaimHandler
func NewClaimHandler(claimService *service.ClaimService, logger *logrus.Logger) *ClaimHandler {
	return &ClaimHandler{claimService: claimService, logger: logger}
}

type claimRequest struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

// CreateClaim 领取登记接口：用户发完 claim 交易后提交哈希
// POST /api/claims
func (h *ClaimHandler) CreateClaim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := h.claimService.Claim(c.Request.Context(), req.TxHash)
	if err != nil {
		writeServiceError(c, h.logger, "CreateClaim", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

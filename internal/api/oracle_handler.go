package api

import (
	"net/http"
	"strconv"

	"BetOracle/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OracleHandler 运维接口：手动触发同步、手动推进单场比赛
type OracleHandler struct {
	syncService *service.OracleSyncService
	logger      *logrus.Logger
}

// NewOracleHandler 创建 OracleHandler
func NewOracleHandler(syncService *service.OracleSyncService, logger *logrus.Logger) *OracleHandler {
	return &OracleHandler{syncService: syncService, logger: logger}
}

// TriggerSync 立即执行一轮完整链上同步（同步执行，完成后返回）
// POST /api/oracle/sync
func (h *OracleHandler) TriggerSync(c *gin.Context) {
	if err := h.syncService.Sync(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("manual sync failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CloseMatch 手动封盘单场比赛（不受开赛时间窗口约束）
// POST /api/oracle/matches/:external_id/close
func (h *OracleHandler) CloseMatch(c *gin.Context) {
	match, err := h.syncService.CloseOne(c.Request.Context(), c.Param("external_id"))
	if err != nil {
		writeServiceError(c, h.logger, "CloseMatch", err)
		return
	}
	c.JSON(http.StatusOK, match)
}

// ResolveMatch 手动结算单场比赛，赛果由调用方给定
// POST /api/oracle/matches/:external_id/resolve?result=1
func (h *OracleHandler) ResolveMatch(c *gin.Context) {
	result, err := strconv.Atoi(c.Query("result"))
	if err != nil || result < 0 || result > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "result must be 1 (home) or 2 (away)"})
		return
	}

	match, err := h.syncService.ResolveOne(c.Request.Context(), c.Param("external_id"), uint8(result))
	if err != nil {
		writeServiceError(c, h.logger, "ResolveMatch", err)
		return
	}
	c.JSON(http.StatusOK, match)
}

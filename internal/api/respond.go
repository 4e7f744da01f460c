package api

import (
	"net/http"

	"BetOracle/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// writeServiceError 服务层错误统一映射：校验失败=400，状态冲突=409，
// 链上调用失败=502，其余按内部错误处理
func writeServiceError(c *gin.Context, logger *logrus.Logger, op string, err error) {
	switch {
	case service.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case service.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case service.IsChainCall(err):
		logger.WithError(err).Errorf("%s chain call failed", op)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.WithError(err).Errorf("%s failed", op)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck 提供部署平台与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	if a.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database not configured",
		})
		return
	}

	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
		"remote":   a.questionChain.RemoteEnabled(),
	})
}

// StorageStatus 展示问题与访问记录配置了哪些存储层。
func (a *API) StorageStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"remoteEnabled": a.questionChain.RemoteEnabled(),
		"questions":     a.questionChain.Tiers(),
		"visits":        a.visitChain.Tiers(),
	})
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/questionbox/internal/store"
)

const msgSaveFailed = "저장에 실패했습니다"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseIntParam(c *gin.Context, key string) (int, error) {
	raw := c.Param(key)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return id, nil
}

// parseIntQuery 读取非负整数查询参数，缺失或非法时返回 0。
func parseIntQuery(c *gin.Context, key string) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}

// respondSaveError 处理写入失败；只有全部存储层失败才是用户可见的错误。
func respondSaveError(c *gin.Context, err error) {
	c.Error(err)
	if errors.Is(err, store.ErrAllBackendsFailed) {
		respondError(c, http.StatusInternalServerError, msgSaveFailed)
		return
	}
	respondError(c, http.StatusInternalServerError, "요청을 처리하지 못했습니다")
}

// withWarnings 把存储层警告附加到管理员响应中。
func withWarnings(payload gin.H, report store.SaveReport) gin.H {
	payload["warnings"] = report.Warnings()
	return payload
}

package handler

import (
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sessionIDKey  = "sid"
	sessionAdmin  = "admin"
	sessionNotice = "notice"
	sessionIDSize = 16
)

func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionIDSize]
}

// ensureSessionID 返回当前会话的 id，不存在时生成并写入 cookie 会话。
func ensureSessionID(c *gin.Context) string {
	session := sessions.Default(c)
	if id, ok := session.Get(sessionIDKey).(string); ok && id != "" {
		return id
	}

	id := newSessionID()
	session.Set(sessionIDKey, id)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	return id
}

func isAdmin(c *gin.Context) bool {
	authed, ok := sessions.Default(c).Get(sessionAdmin).(bool)
	return ok && authed
}

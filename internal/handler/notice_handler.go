package handler

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/crypto/bcrypt"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

const defaultNotice = `# 질문 안내

- 연사에게 궁금한 점을 자유롭게 남겨주세요.
- 이름을 비워두면 **익명**으로 등록됩니다.
- 좋아요는 질문마다 한 번만 누를 수 있습니다.
`

const noticeTemplate = `{{define "notice.html"}}<!DOCTYPE html>
<html lang="ko">
<head><meta charset="utf-8"><title>{{.title}}</title></head>
<body><main>{{if .locked}}
<form method="post" action="/notice/unlock">
{{if .error}}<p class="error">{{.error}}</p>{{end}}
<label>비밀번호 <input type="password" name="password" autocomplete="current-password"></label>
<button type="submit">확인</button>
</form>
{{else}}{{.content}}{{end}}</main></body>
</html>{{end}}`

// Templates 返回服务端渲染使用的模板集合。
func Templates() *template.Template {
	return template.Must(template.New("questionbox").Parse(noticeTemplate))
}

func renderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	safe := sanitizer.SanitizeBytes(buf.Bytes())
	return template.HTML(safe), nil
}

type unlockNoticeRequest struct {
	Password string `form:"password" json:"password"`
}

// noticeUnlocked 在未设置公告密码、会话已解锁或管理员登录时返回 true。
func (a *API) noticeUnlocked(c *gin.Context) bool {
	if a.noticeHash == nil || isAdmin(c) {
		return true
	}
	unlocked, ok := sessions.Default(c).Get(sessionNotice).(bool)
	return ok && unlocked
}

func renderNoticeLocked(c *gin.Context, message string) {
	c.HTML(http.StatusUnauthorized, "notice.html", gin.H{
		"title":  "공지사항",
		"locked": true,
		"error":  message,
	})
}

// UnlockNotice 校验公告密码，成功后在会话中记录并跳回公告页。
func (a *API) UnlockNotice(c *gin.Context) {
	if a.noticeHash == nil {
		c.Redirect(http.StatusSeeOther, "/notice")
		return
	}

	var payload unlockNoticeRequest
	if err := c.ShouldBind(&payload); err != nil || payload.Password == "" {
		renderNoticeLocked(c, "비밀번호를 입력해주세요")
		return
	}
	if err := bcrypt.CompareHashAndPassword(a.noticeHash, []byte(payload.Password)); err != nil {
		renderNoticeLocked(c, "비밀번호가 올바르지 않습니다")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionNotice, true)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "세션 저장에 실패했습니다")
		return
	}
	c.Redirect(http.StatusSeeOther, "/notice")
}

// ShowNotice 渲染公告页；公告文件不存在时使用内置说明。设置了公告密码时先要求解锁。
func (a *API) ShowNotice(c *gin.Context) {
	if !a.noticeUnlocked(c) {
		renderNoticeLocked(c, "")
		return
	}

	content := defaultNotice
	if a.noticePath != "" {
		data, err := os.ReadFile(a.noticePath)
		switch {
		case err == nil && strings.TrimSpace(string(data)) != "":
			content = string(data)
		case err != nil && !os.IsNotExist(err):
			c.Error(err)
		}
	}

	rendered, err := renderMarkdown(content)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "공지사항을 표시할 수 없습니다")
		return
	}

	c.HTML(http.StatusOK, "notice.html", gin.H{
		"title":   "공지사항",
		"content": rendered,
	})
}

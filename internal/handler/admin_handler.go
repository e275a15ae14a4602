package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/questionbox/internal/service"
	"golang.org/x/crypto/bcrypt"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type loginRequest struct {
	Password string `json:"password"`
}

type updateQuestionRequest struct {
	Name     string `json:"name"`
	Question string `json:"question"`
}

type thresholdRequest struct {
	Threshold int `json:"threshold"`
}

type ageRequest struct {
	Hours int `json:"hours"`
}

// Login 校验共享的管理员密码并在会话中标记管理员身份。
func (a *API) Login(c *gin.Context) {
	var payload loginRequest
	if !bindJSON(c, &payload, "비밀번호를 입력해주세요") {
		return
	}

	if err := bcrypt.CompareHashAndPassword(a.adminHash, []byte(payload.Password)); err != nil {
		respondError(c, http.StatusUnauthorized, "비밀번호가 올바르지 않습니다")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionAdmin, true)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "세션 저장에 실패했습니다")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "로그인되었습니다"})
}

// Logout 清除管理员身份，保留访客会话 id。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Delete(sessionAdmin)
	if err := session.Save(); err != nil {
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "로그아웃되었습니다"})
}

// AuthRequired 是一个简单的认证中间件
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			respondError(c, http.StatusUnauthorized, "관리자 로그인이 필요합니다")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminListQuestions 返回带过滤条件的问题列表。
func (a *API) AdminListQuestions(c *gin.Context) {
	all := a.questions.All(c.Request.Context())
	questions := service.FilterQuestions(all, questionFilterFromQuery(c))

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"matched":   len(questions),
		"summary":   service.Summarize(all),
	})
}

// AdminUpdateQuestion 修改问题的作者与正文。
func (a *API) AdminUpdateQuestion(c *gin.Context) {
	id, err := parseIntParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 질문 번호입니다")
		return
	}

	var payload updateQuestionRequest
	if !bindJSON(c, &payload, "질문 내용을 입력해주세요") {
		return
	}

	question, report, err := a.questions.Update(c.Request.Context(), id, service.QuestionInput{
		Author: payload.Name,
		Body:   payload.Question,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionNotFound):
			respondError(c, http.StatusNotFound, "질문을 찾을 수 없습니다")
		case errors.Is(err, service.ErrQuestionEmpty):
			respondError(c, http.StatusBadRequest, "질문 내용을 입력해주세요")
		case errors.Is(err, service.ErrQuestionTooLong):
			respondError(c, http.StatusBadRequest, "질문은 1000자 이내로 작성해주세요")
		default:
			respondSaveError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, withWarnings(gin.H{"question": question}, report))
}

// AdminDeleteQuestion 删除单个问题，剩余问题重新编号。
func (a *API) AdminDeleteQuestion(c *gin.Context) {
	id, err := parseIntParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 질문 번호입니다")
		return
	}

	report, err := a.questions.Delete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrQuestionNotFound) {
			respondError(c, http.StatusNotFound, "질문을 찾을 수 없습니다")
			return
		}
		respondSaveError(c, err)
		return
	}

	c.JSON(http.StatusOK, withWarnings(gin.H{"message": "질문이 삭제되었습니다"}, report))
}

// AdminDeleteAllQuestions 清空全部问题。
func (a *API) AdminDeleteAllQuestions(c *gin.Context) {
	removed, report, err := a.questions.DeleteAll(c.Request.Context())
	if err != nil {
		respondSaveError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{"removed": removed}, report))
}

// PurgeBelowLikes 删除点赞数低于阈值的问题。
func (a *API) PurgeBelowLikes(c *gin.Context) {
	var payload thresholdRequest
	if !bindJSON(c, &payload, "기준 좋아요 수를 입력해주세요") {
		return
	}

	removed, report, err := a.questions.DeleteBelowLikes(c.Request.Context(), payload.Threshold)
	if err != nil {
		if errors.Is(err, service.ErrInvalidThreshold) {
			respondError(c, http.StatusBadRequest, "기준 좋아요 수는 1 이상이어야 합니다")
			return
		}
		respondSaveError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{"removed": removed}, report))
}

// PurgeOlderThan 删除早于指定小时数提交的问题。
func (a *API) PurgeOlderThan(c *gin.Context) {
	var payload ageRequest
	if !bindJSON(c, &payload, "기준 시간을 입력해주세요") {
		return
	}
	if payload.Hours <= 0 {
		respondError(c, http.StatusBadRequest, "기준 시간은 1시간 이상이어야 합니다")
		return
	}

	cutoff := a.now().Add(-time.Duration(payload.Hours) * time.Hour)
	removed, report, err := a.questions.DeleteOlderThan(c.Request.Context(), cutoff)
	if err != nil {
		respondSaveError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{"removed": removed}, report))
}

// ResetLikes 将所有点赞清零。
func (a *API) ResetLikes(c *gin.Context) {
	report, err := a.questions.ResetLikes(c.Request.Context())
	if err != nil {
		respondSaveError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{"message": "좋아요가 초기화되었습니다"}, report))
}

// QuestionStats 返回问题统计。
func (a *API) QuestionStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.questions.Stats(c.Request.Context()))
}

// VisitStats 返回访客统计。
func (a *API) VisitStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.visits.Overview(c.Request.Context()))
}

// ResetVisits 清空访问记录。
func (a *API) ResetVisits(c *gin.Context) {
	report, err := a.visits.Reset(c.Request.Context())
	if err != nil {
		respondSaveError(c, err)
		return
	}
	c.JSON(http.StatusOK, withWarnings(gin.H{"message": "방문 기록이 초기화되었습니다"}, report))
}

// ExportCSV 下载 CSV 文件。
func (a *API) ExportCSV(c *gin.Context) {
	data, err := a.exports.CSV(a.questions.All(c.Request.Context()))
	a.sendExport(c, data, err, "csv", "text/csv; charset=utf-8")
}

// ExportExcel 下载 Excel 文件。
func (a *API) ExportExcel(c *gin.Context) {
	data, err := a.exports.Excel(a.questions.All(c.Request.Context()))
	a.sendExport(c, data, err, "xlsx", xlsxContentType)
}

func (a *API) sendExport(c *gin.Context, data []byte, err error, ext, contentType string) {
	if err != nil {
		if errors.Is(err, service.ErrNothingToExport) {
			respondError(c, http.StatusNotFound, "내보낼 질문이 없습니다")
			return
		}
		c.Error(err)
		respondError(c, http.StatusInternalServerError, "파일을 만들지 못했습니다")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, a.exports.Filename(ext)))
	c.Data(http.StatusOK, contentType, data)
}

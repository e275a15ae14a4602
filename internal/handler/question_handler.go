package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/questionbox/internal/service"
)

type submitQuestionRequest struct {
	Name     string `json:"name"`
	Question string `json:"question"`
}

func questionFilterFromQuery(c *gin.Context) service.QuestionFilter {
	return service.QuestionFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		MinLikes: parseIntQuery(c, "min_likes"),
		Sort:     strings.TrimSpace(c.Query("sort")),
	}
}

// ListQuestions 返回问题列表与点赞汇总，并记录一次页面访问。
func (a *API) ListQuestions(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := ensureSessionID(c)

	// 访问统计失败不影响页面
	if _, err := a.visits.TrackVisit(ctx, sessionID); err != nil {
		c.Error(err)
		a.log.Warn().Err(err).Msg("visit tracking failed")
	}

	all := a.questions.All(ctx)
	likedIDs := []int{}
	if ledger := a.ledgers.ForSession(sessionID); ledger != nil {
		likedIDs = ledger.IDs()
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": service.FilterQuestions(all, questionFilterFromQuery(c)),
		"summary":   service.Summarize(all),
		"likedIds":  likedIDs,
	})
}

// SubmitQuestion 提交新问题。
func (a *API) SubmitQuestion(c *gin.Context) {
	var payload submitQuestionRequest
	if !bindJSON(c, &payload, "질문 내용을 입력해주세요") {
		return
	}
	ensureSessionID(c)

	question, _, err := a.questions.Submit(c.Request.Context(), service.QuestionInput{
		Author: payload.Name,
		Body:   payload.Question,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionEmpty):
			respondError(c, http.StatusBadRequest, "질문 내용을 입력해주세요")
		case errors.Is(err, service.ErrQuestionTooLong):
			respondError(c, http.StatusBadRequest, "질문은 1000자 이내로 작성해주세요")
		default:
			respondSaveError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "질문이 등록되었습니다",
		"question": question,
	})
}

// LikeQuestion 为问题点赞，同一会话只计一次。
func (a *API) LikeQuestion(c *gin.Context) {
	id, err := parseIntParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "잘못된 질문 번호입니다")
		return
	}

	ctx := c.Request.Context()
	ledger := a.ledgers.ForSession(ensureSessionID(c))

	question, _, err := a.engagement.IncrementLike(ctx, id, ledger)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadyLiked):
			respondError(c, http.StatusConflict, "이미 좋아요를 누른 질문입니다")
		case errors.Is(err, service.ErrQuestionNotFound):
			respondError(c, http.StatusNotFound, "질문을 찾을 수 없습니다")
		case errors.Is(err, service.ErrLedgerFull):
			respondError(c, http.StatusTooManyRequests, "더 이상 좋아요를 누를 수 없습니다")
		default:
			respondSaveError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": question,
		"summary":  a.engagement.Summary(ctx),
	})
}

package service

import (
	"context"
	"errors"

	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/store"
)

var (
	ErrAlreadyLiked    = errors.New("question already liked in this session")
	ErrSessionRequired = errors.New("session is required")
)

// SessionLedger 记录某个会话已经点赞过的问题。
// Reserve 原子地检查并登记，已登记时返回 ErrAlreadyLiked；Release 撤销未能保存的登记。
type SessionLedger interface {
	Has(questionID int) bool
	Reserve(questionID int) error
	Release(questionID int) error
	IDs() []int
}

// LikeSummary 是点赞的聚合数据，每次查询时重新计算。
type LikeSummary struct {
	Count        int     `json:"count"`
	TotalLikes   int     `json:"totalLikes"`
	AverageLikes float64 `json:"averageLikes"`
}

// Summarize computes the like aggregates; an empty set averages to 0.
func Summarize(questions []db.Question) LikeSummary {
	summary := LikeSummary{Count: len(questions)}
	for _, q := range questions {
		summary.TotalLikes += q.Likes
	}
	if summary.Count > 0 {
		summary.AverageLikes = float64(summary.TotalLikes) / float64(summary.Count)
	}
	return summary
}

// EngagementService 处理点赞。
type EngagementService struct {
	records *Records[db.Question]
}

// NewEngagementService shares records with QuestionService so writes are serialized together.
func NewEngagementService(records *Records[db.Question]) *EngagementService {
	return &EngagementService{records: records}
}

// IncrementLike 为问题点赞一次。同一会话重复点赞返回 ErrAlreadyLiked 且不写入。
// 账本先登记再保存，保存失败或问题不存在时撤销登记。
func (s *EngagementService) IncrementLike(ctx context.Context, questionID int, ledger SessionLedger) (*db.Question, store.SaveReport, error) {
	if ledger == nil {
		return nil, store.SaveReport{}, ErrSessionRequired
	}
	if err := ledger.Reserve(questionID); err != nil {
		return nil, store.SaveReport{}, err
	}

	var liked db.Question
	report, err := s.records.Update(ctx, func(questions []db.Question) ([]db.Question, error) {
		for i := range questions {
			if questions[i].ID == questionID {
				questions[i].Likes++
				liked = questions[i]
				return questions, nil
			}
		}
		return nil, ErrQuestionNotFound
	})
	if err != nil {
		if releaseErr := ledger.Release(questionID); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
		return nil, report, err
	}
	return &liked, report, nil
}

// Summary 返回当前问题集合的点赞汇总。
func (s *EngagementService) Summary(ctx context.Context) LikeSummary {
	return Summarize(s.records.Snapshot(ctx))
}

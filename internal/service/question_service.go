package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/store"
)

// MaxQuestionLength 是问题正文允许的最大字符数。
const MaxQuestionLength = 1000

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrQuestionEmpty    = errors.New("question body is empty")
	ErrQuestionTooLong  = errors.New("question body is too long")
	ErrInvalidThreshold = errors.New("invalid threshold")
)

const (
	SortLatest  = "latest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// QuestionService 负责问题的提交、查询与后台维护。
type QuestionService struct {
	records  *Records[db.Question]
	location *time.Location
	now      func() time.Time
}

// QuestionInput 描述提交或编辑问题时的输入。
type QuestionInput struct {
	Author string
	Body   string
}

// QuestionFilter 描述列表的搜索、点赞阈值与排序条件。
type QuestionFilter struct {
	Search   string
	MinLikes int
	Sort     string
}

// NewQuestionService creates a QuestionService; timestamps are written in loc.
func NewQuestionService(records *Records[db.Question], loc *time.Location) *QuestionService {
	if loc == nil {
		loc = time.Local
	}
	return &QuestionService{records: records, location: loc, now: time.Now}
}

// WithClock 允许测试固定当前时间。
func (s *QuestionService) WithClock(now func() time.Time) *QuestionService {
	if now != nil {
		s.now = now
	}
	return s
}

func (in QuestionInput) normalize() (QuestionInput, error) {
	in.Author = strings.TrimSpace(in.Author)
	in.Body = strings.TrimSpace(in.Body)
	if in.Body == "" {
		return in, ErrQuestionEmpty
	}
	if utf8.RuneCountInString(in.Body) > MaxQuestionLength {
		return in, ErrQuestionTooLong
	}
	if in.Author == "" {
		in.Author = db.AnonymousAuthor
	}
	return in, nil
}

// Submit 保存新问题：id 为当前最大 id 加一，点赞数为 0。
func (s *QuestionService) Submit(ctx context.Context, input QuestionInput) (*db.Question, store.SaveReport, error) {
	in, err := input.normalize()
	if err != nil {
		return nil, store.SaveReport{}, err
	}

	var created db.Question
	report, err := s.records.Update(ctx, func(questions []db.Question) ([]db.Question, error) {
		questions = NormalizeQuestionIDs(questions)
		maxID := 0
		for _, q := range questions {
			if q.ID > maxID {
				maxID = q.ID
			}
		}

		created = db.Question{
			ID:        maxID + 1,
			Author:    in.Author,
			Body:      in.Body,
			Timestamp: s.now().In(s.location).Format(db.TimestampLayout),
			Likes:     0,
		}
		return append(questions, created), nil
	})
	if err != nil {
		return nil, report, err
	}
	return &created, report, nil
}

// List 返回满足过滤条件的问题。
func (s *QuestionService) List(ctx context.Context, filter QuestionFilter) []db.Question {
	return FilterQuestions(s.records.Snapshot(ctx), filter)
}

// All 返回全部问题，保持存储顺序。
func (s *QuestionService) All(ctx context.Context) []db.Question {
	return s.records.Snapshot(ctx)
}

// FilterQuestions 按关键字（正文或作者，不区分大小写）与最少点赞数过滤并排序。
func FilterQuestions(questions []db.Question, filter QuestionFilter) []db.Question {
	keyword := strings.ToLower(strings.TrimSpace(filter.Search))

	result := make([]db.Question, 0, len(questions))
	for _, q := range questions {
		if q.Likes < filter.MinLikes {
			continue
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(q.Body), keyword) &&
			!strings.Contains(strings.ToLower(q.Author), keyword) {
			continue
		}
		result = append(result, q)
	}

	switch filter.Sort {
	case SortOldest:
		sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	case SortPopular:
		sort.SliceStable(result, func(i, j int) bool {
			if result[i].Likes != result[j].Likes {
				return result[i].Likes > result[j].Likes
			}
			return result[i].ID > result[j].ID
		})
	default:
		sort.SliceStable(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	}
	return result
}

// Get returns a single question.
func (s *QuestionService) Get(ctx context.Context, id int) (*db.Question, error) {
	for _, q := range s.records.Snapshot(ctx) {
		if q.ID == id {
			found := q
			return &found, nil
		}
	}
	return nil, ErrQuestionNotFound
}

// Update 修改问题的作者与正文，点赞数与时间保持不变。
func (s *QuestionService) Update(ctx context.Context, id int, input QuestionInput) (*db.Question, store.SaveReport, error) {
	in, err := input.normalize()
	if err != nil {
		return nil, store.SaveReport{}, err
	}

	var updated db.Question
	report, err := s.records.Update(ctx, func(questions []db.Question) ([]db.Question, error) {
		for i := range questions {
			if questions[i].ID == id {
				questions[i].Author = in.Author
				questions[i].Body = in.Body
				updated = questions[i]
				return questions, nil
			}
		}
		return nil, ErrQuestionNotFound
	})
	if err != nil {
		return nil, report, err
	}
	return &updated, report, nil
}

// Delete 删除问题并把剩余问题重新编号为 1..N。
func (s *QuestionService) Delete(ctx context.Context, id int) (store.SaveReport, error) {
	return s.records.Update(ctx, func(questions []db.Question) ([]db.Question, error) {
		kept := make([]db.Question, 0, len(questions))
		found := false
		for _, q := range questions {
			if q.ID == id {
				found = true
				continue
			}
			kept = append(kept, q)
		}
		if !found {
			return nil, ErrQuestionNotFound
		}
		return Renumber(kept), nil
	})
}

// DeleteBelowLikes 删除点赞数低于 threshold 的问题，返回删除数量。
func (s *QuestionService) DeleteBelowLikes(ctx context.Context, threshold int) (int, store.SaveReport, error) {
	if threshold <= 0 {
		return 0, store.SaveReport{}, ErrInvalidThreshold
	}
	return s.deleteWhere(ctx, func(q db.Question) bool { return q.Likes < threshold })
}

// DeleteOlderThan 删除提交时间早于 cutoff 的问题；时间无法解析的问题保留。
func (s *QuestionService) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, store.SaveReport, error) {
	return s.deleteWhere(ctx, func(q db.Question) bool {
		created, err := time.ParseInLocation(db.TimestampLayout, q.Timestamp, s.location)
		if err != nil {
			return false
		}
		return created.Before(cutoff)
	})
}

// DeleteAll 清空所有问题。
func (s *QuestionService) DeleteAll(ctx context.Context) (int, store.SaveReport, error) {
	return s.deleteWhere(ctx, func(db.Question) bool { return true })
}

func (s *QuestionService) deleteWhere(ctx context.Context, match func(db.Question) bool) (int, store.SaveReport, error) {
	removed := 0
	report, err := s.records.Update(ctx, func(questions []db.Question) ([]db.Question, error) {
		kept := make([]db.Question, 0, len(questions))
		for _, q := range questions {
			if match(q) {
				removed++
				continue
			}
			kept = append(kept, q)
		}
		return Renumber(kept), nil
	})
	if err != nil {
		return 0, report, err
	}
	return removed, report, nil
}

// ResetLikes 把所有问题的点赞数清零。
func (s *QuestionService) ResetLikes(ctx context.Context) (store.SaveReport, error) {
	return s.records.Update(ctx, func(questions []db.Question) ([]db.Question, error) {
		for i := range questions {
			questions[i].Likes = 0
		}
		return questions, nil
	})
}

// AuthorStat 汇总单个作者的提问情况。
type AuthorStat struct {
	Author       string  `json:"author"`
	Questions    int     `json:"questions"`
	TotalLikes   int     `json:"totalLikes"`
	AverageLikes float64 `json:"averageLikes"`
}

// QuestionStats 是后台统计页使用的问题汇总。
type QuestionStats struct {
	Total          int          `json:"total"`
	TotalLikes     int          `json:"totalLikes"`
	AverageLikes   float64      `json:"averageLikes"`
	Anonymous      int          `json:"anonymous"`
	Authors        []AuthorStat `json:"authors"`
	HourlyActivity [24]int      `json:"hourlyActivity"`
}

// Stats 每次调用都重新计算统计数据。
func (s *QuestionService) Stats(ctx context.Context) QuestionStats {
	return BuildQuestionStats(s.records.Snapshot(ctx), s.location)
}

// BuildQuestionStats computes QuestionStats; named authors are listed by question count.
func BuildQuestionStats(questions []db.Question, loc *time.Location) QuestionStats {
	summary := Summarize(questions)
	stats := QuestionStats{
		Total:        summary.Count,
		TotalLikes:   summary.TotalLikes,
		AverageLikes: summary.AverageLikes,
		Authors:      make([]AuthorStat, 0),
	}

	byAuthor := make(map[string]*AuthorStat)
	for _, q := range questions {
		if ts, err := time.ParseInLocation(db.TimestampLayout, q.Timestamp, loc); err == nil {
			stats.HourlyActivity[ts.Hour()]++
		}

		if q.IsAnonymous() {
			stats.Anonymous++
			continue
		}
		entry, ok := byAuthor[q.Author]
		if !ok {
			entry = &AuthorStat{Author: q.Author}
			byAuthor[q.Author] = entry
		}
		entry.Questions++
		entry.TotalLikes += q.Likes
	}

	for _, entry := range byAuthor {
		entry.AverageLikes = math.Round(float64(entry.TotalLikes)/float64(entry.Questions)*10) / 10
		stats.Authors = append(stats.Authors, *entry)
	}
	sort.Slice(stats.Authors, func(i, j int) bool {
		if stats.Authors[i].Questions != stats.Authors[j].Questions {
			return stats.Authors[i].Questions > stats.Authors[j].Questions
		}
		return stats.Authors[i].Author < stats.Authors[j].Author
	})

	return stats
}

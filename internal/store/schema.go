package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/questionbox/internal/db"
)

// Schema 描述一种记录在表格与 JSON 文件中的行表示。
// Decode 对缺失或格式错误的字段做宽松转换，返回 false 表示该行应被丢弃。
type Schema[T any] struct {
	Columns []string
	Row     func(T) []any
	Decode  func(map[string]any) (T, bool)
}

// QuestionSchema 对应列 id, name, question, timestamp, likes。
var QuestionSchema = Schema[db.Question]{
	Columns: []string{"id", "name", "question", "timestamp", "likes"},
	Row: func(q db.Question) []any {
		return []any{q.ID, q.Author, q.Body, q.Timestamp, q.Likes}
	},
	Decode: decodeQuestion,
}

// VisitSchema 对应列 session_id, date, first_visit, last_visit, visit_count。
var VisitSchema = Schema[db.Visit]{
	Columns: []string{"session_id", "date", "first_visit", "last_visit", "visit_count"},
	Row: func(v db.Visit) []any {
		return []any{v.SessionID, v.Date, v.FirstVisit, v.LastVisit, v.VisitCount}
	},
	Decode: decodeVisit,
}

func decodeQuestion(fields map[string]any) (db.Question, bool) {
	body := asString(fields["question"])
	if strings.TrimSpace(body) == "" {
		return db.Question{}, false
	}

	// 非数字 id 记为 0，由 ID 规范化阶段重新分配。
	id, _ := asInt(fields["id"])
	likes, _ := asInt(fields["likes"])
	if likes < 0 {
		likes = 0
	}

	author := strings.TrimSpace(asString(fields["name"]))
	if author == "" {
		author = db.AnonymousAuthor
	}

	return db.Question{
		ID:        id,
		Author:    author,
		Body:      body,
		Timestamp: strings.TrimSpace(asString(fields["timestamp"])),
		Likes:     likes,
	}, true
}

func decodeVisit(fields map[string]any) (db.Visit, bool) {
	sessionID := strings.TrimSpace(asString(fields["session_id"]))
	date := strings.TrimSpace(asString(fields["date"]))
	if sessionID == "" || date == "" {
		return db.Visit{}, false
	}

	count, ok := asInt(fields["visit_count"])
	if !ok || count < 1 {
		count = 1
	}

	first := strings.TrimSpace(asString(fields["first_visit"]))
	last := strings.TrimSpace(asString(fields["last_visit"]))
	if first == "" {
		first = last
	}
	if last == "" {
		last = first
	}

	return db.Visit{
		SessionID:  sessionID,
		Date:       date,
		FirstVisit: first,
		LastVisit:  last,
		VisitCount: count,
	}, true
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func asInt(v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return int(val), true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n, true
		}
		// 表格导出的数字可能带小数部分，例如 "3.0"。
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f), true
		}
		return 0, false
	default:
		return asInt(fmt.Sprint(val))
	}
}

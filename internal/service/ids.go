package service

import "github.com/questionbox/internal/db"

// NormalizeQuestionIDs 保证所有 id 为互不相同的正整数。
// 已经唯一且为正的 id 保持不变；缺失、非正或重复的 id 按原顺序依次分配为 max+1, max+2, ...
// 对已规范化的序列再次调用不会改变任何 id。
func NormalizeQuestionIDs(records []db.Question) []db.Question {
	out := make([]db.Question, len(records))
	copy(out, records)

	maxID := 0
	for _, record := range out {
		if record.ID > maxID {
			maxID = record.ID
		}
	}

	seen := make(map[int]struct{}, len(out))
	next := maxID + 1
	for i := range out {
		id := out[i].ID
		if _, dup := seen[id]; id > 0 && !dup {
			seen[id] = struct{}{}
			continue
		}
		out[i].ID = next
		seen[next] = struct{}{}
		next++
	}
	return out
}

// Renumber 按当前顺序把 id 重新编号为 1..N，删除问题后使用。
func Renumber(records []db.Question) []db.Question {
	out := make([]db.Question, len(records))
	copy(out, records)
	for i := range out {
		out[i].ID = i + 1
	}
	return out
}

// NormalizeVisits 合并重复的 (session_id, date) 记录，保留首次出现的位置。
// 合并后取最早的首次访问、最晚的最后访问，访问次数相加且至少为 1。
func NormalizeVisits(records []db.Visit) []db.Visit {
	type visitKey struct{ session, date string }

	out := make([]db.Visit, 0, len(records))
	index := make(map[visitKey]int, len(records))
	for _, record := range records {
		if record.VisitCount < 1 {
			record.VisitCount = 1
		}

		key := visitKey{record.SessionID, record.Date}
		pos, exists := index[key]
		if !exists {
			index[key] = len(out)
			out = append(out, record)
			continue
		}

		merged := &out[pos]
		if record.FirstVisit != "" && (merged.FirstVisit == "" || record.FirstVisit < merged.FirstVisit) {
			merged.FirstVisit = record.FirstVisit
		}
		if record.LastVisit > merged.LastVisit {
			merged.LastVisit = record.LastVisit
		}
		merged.VisitCount += record.VisitCount
	}
	return out
}

package service

import (
	"context"
	"math"
	"time"

	"github.com/questionbox/internal/db"
	"github.com/questionbox/internal/store"
)

// DefaultActiveWindow 是判定"当前在线"的时间窗口。
const DefaultActiveWindow = 300 * time.Second

// VisitService 负责访问记录与访客统计。
type VisitService struct {
	records  *Records[db.Visit]
	location *time.Location
	window   time.Duration
	now      func() time.Time
}

// DailyStats 是某一天的访客统计。
type DailyStats struct {
	Date            string `json:"date"`
	UniqueVisitors  int    `json:"uniqueVisitors"`
	TotalVisits     int    `json:"totalVisits"`
	CurrentVisitors int    `json:"currentVisitors"`
}

// AllTimeStats 是全部历史的访客统计。
type AllTimeStats struct {
	TotalUniqueVisitors int     `json:"totalUniqueVisitors"`
	TotalVisits         int     `json:"totalVisits"`
	Days                int     `json:"days"`
	AverageVisitsPerDay float64 `json:"averageVisitsPerDay"`
}

// VisitOverview 汇总后台访客页所需的全部数据。
type VisitOverview struct {
	Today   DailyStats   `json:"today"`
	AllTime AllTimeStats `json:"allTime"`
	Hourly  [24]int      `json:"hourly"`
}

// NewVisitService creates a VisitService with the default 300 second active window.
func NewVisitService(records *Records[db.Visit], loc *time.Location) *VisitService {
	if loc == nil {
		loc = time.Local
	}
	return &VisitService{records: records, location: loc, window: DefaultActiveWindow, now: time.Now}
}

// WithActiveWindow 调整在线判定窗口。
func (s *VisitService) WithActiveWindow(d time.Duration) *VisitService {
	if d > 0 {
		s.window = d
	}
	return s
}

// WithClock 允许测试固定当前时间。
func (s *VisitService) WithClock(now func() time.Time) *VisitService {
	if now != nil {
		s.now = now
	}
	return s
}

// TrackVisit 记录一次页面访问：当天首次访问时新建记录，否则更新最后访问时间并累加次数。
func (s *VisitService) TrackVisit(ctx context.Context, sessionID string) (store.SaveReport, error) {
	if sessionID == "" {
		return store.SaveReport{}, ErrSessionRequired
	}

	now := s.now().In(s.location)
	today := now.Format(db.DateLayout)
	stamp := now.Format(db.TimestampLayout)

	return s.records.Update(ctx, func(visits []db.Visit) ([]db.Visit, error) {
		visits = NormalizeVisits(visits)
		for i := range visits {
			if visits[i].SessionID == sessionID && visits[i].Date == today {
				visits[i].LastVisit = stamp
				visits[i].VisitCount++
				return visits, nil
			}
		}
		return append(visits, db.Visit{
			SessionID:  sessionID,
			Date:       today,
			FirstVisit: stamp,
			LastVisit:  stamp,
			VisitCount: 1,
		}), nil
	})
}

// Visits 返回全部访问记录。
func (s *VisitService) Visits(ctx context.Context) []db.Visit {
	return s.records.Snapshot(ctx)
}

// CurrentVisitors 统计最后访问时间距 asOf 不超过活跃窗口的记录数。
func (s *VisitService) CurrentVisitors(visits []db.Visit, asOf time.Time) int {
	count := 0
	for _, v := range visits {
		last, err := time.ParseInLocation(db.TimestampLayout, v.LastVisit, s.location)
		if err != nil {
			continue
		}
		if asOf.Sub(last) < s.window {
			count++
		}
	}
	return count
}

// DailyStats 统计 asOf 当天的访客。
func (s *VisitService) DailyStats(visits []db.Visit, asOf time.Time) DailyStats {
	today := asOf.In(s.location).Format(db.DateLayout)
	stats := DailyStats{Date: today}

	sessions := make(map[string]struct{})
	todays := make([]db.Visit, 0)
	for _, v := range visits {
		if v.Date != today {
			continue
		}
		todays = append(todays, v)
		sessions[v.SessionID] = struct{}{}
		stats.TotalVisits += v.VisitCount
	}
	stats.UniqueVisitors = len(sessions)
	stats.CurrentVisitors = s.CurrentVisitors(todays, asOf)
	return stats
}

// AllTimeStats 统计全部历史；日均访问保留一位小数。
func (s *VisitService) AllTimeStats(visits []db.Visit) AllTimeStats {
	var stats AllTimeStats

	sessions := make(map[string]struct{})
	days := make(map[string]struct{})
	for _, v := range visits {
		sessions[v.SessionID] = struct{}{}
		days[v.Date] = struct{}{}
		stats.TotalVisits += v.VisitCount
	}
	stats.TotalUniqueVisitors = len(sessions)
	stats.Days = len(days)
	if stats.Days > 0 {
		stats.AverageVisitsPerDay = math.Round(float64(stats.TotalVisits)/float64(stats.Days)*10) / 10
	}
	return stats
}

// HourlyActivity 按最后访问的小时统计记录数。
func (s *VisitService) HourlyActivity(visits []db.Visit) [24]int {
	var hours [24]int
	for _, v := range visits {
		last, err := time.ParseInLocation(db.TimestampLayout, v.LastVisit, s.location)
		if err != nil {
			continue
		}
		hours[last.Hour()]++
	}
	return hours
}

// Overview 读取一次记录并计算所有统计。
func (s *VisitService) Overview(ctx context.Context) VisitOverview {
	visits := s.records.Snapshot(ctx)
	now := s.now()
	return VisitOverview{
		Today:   s.DailyStats(visits, now),
		AllTime: s.AllTimeStats(visits),
		Hourly:  s.HourlyActivity(visits),
	}
}

// Reset 清空全部访问记录。
func (s *VisitService) Reset(ctx context.Context) (store.SaveReport, error) {
	return s.records.Update(ctx, func([]db.Visit) ([]db.Visit, error) {
		return []db.Visit{}, nil
	})
}

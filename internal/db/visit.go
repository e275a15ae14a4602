package db

// Visit 记录某个会话在某一天的访问情况，(session_id, date) 唯一。
type Visit struct {
	SessionID  string `gorm:"column:session_id;primaryKey;size:64" json:"session_id"`
	Date       string `gorm:"column:date;primaryKey;size:10" json:"date"`
	FirstVisit string `gorm:"column:first_visit;size:32" json:"first_visit"`
	LastVisit  string `gorm:"column:last_visit;size:32" json:"last_visit"`
	VisitCount int    `gorm:"column:visit_count;not null;default:1" json:"visit_count"`
}

// TableName 指定自定义表名。
func (Visit) TableName() string {
	return "visits"
}

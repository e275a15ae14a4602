package db

const (
	// AnonymousAuthor 是未填写姓名时的作者显示名。
	AnonymousAuthor = "익명"
	// TimestampLayout 是问题与访问记录中时间字符串的格式。
	TimestampLayout = "2006-01-02 15:04:05"
	// DateLayout 是访问记录中日期字段的格式。
	DateLayout = "2006-01-02"
)

// Question 定义了提问记录，列名与表格、JSON 文件保持一致。
type Question struct {
	ID        int    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Author    string `gorm:"column:name;size:100" json:"name"`
	Body      string `gorm:"column:question;type:text" json:"question"`
	Timestamp string `gorm:"column:timestamp;size:32" json:"timestamp"`
	Likes     int    `gorm:"column:likes;not null;default:0" json:"likes"`
}

// TableName 指定自定义表名。
func (Question) TableName() string {
	return "questions"
}

// IsAnonymous 判断问题是否匿名提交。
func (q Question) IsAnonymous() bool {
	return q.Author == AnonymousAuthor
}

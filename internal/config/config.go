package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

// SheetsConfig 描述远程表格存储的连接参数。
type SheetsConfig struct {
	SpreadsheetID      string
	CredentialsFile    string
	QuestionsWorksheet string `validate:"required"`
	VisitsWorksheet    string `validate:"required"`
	Timeout            time.Duration
}

// Enabled 仅当表格 ID 与凭据文件同时存在时返回 true。
func (s SheetsConfig) Enabled() bool {
	return s.SpreadsheetID != "" && s.CredentialsFile != ""
}

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr       string `validate:"required"`
	Port             string `validate:"required"`
	GinMode          string `validate:"required|in:release,debug,test"`
	DatabasePath     string `validate:"required"`
	QuestionsFile    string
	VisitsFile       string
	SessionSecret    string `validate:"required|minLen:8"`
	AdminPassword    string `validate:"required"`
	Sheets           SheetsConfig
	Timezone         string
	Location         *time.Location
	ActiveWindow     time.Duration
	LikeLedgerSizeMB int `validate:"required|min:1"`
	LikeLedgerTTL    time.Duration
	NoticePath       string
	NoticePassword   string
	MetricsEnabled   bool
	LogLevel         string `validate:"required|in:debug,info,warn,error"`
	LogFormat        string `validate:"required|in:json,pretty"`
}

var defaults = map[string]any{
	"port":                       "8080",
	"gin_mode":                   "release",
	"database_path":              "data/questionbox.db",
	"questions_file":             "data/questions.json",
	"visits_file":                "data/stats.json",
	"session_secret":             "questionbox-dev-secret",
	"admin_password":             "woori2024",
	"sheets_questions_worksheet": "questions",
	"sheets_visits_worksheet":    "stats",
	"sheets_timeout":             10 * time.Second,
	"timezone":                   "Local",
	"active_window":              300 * time.Second,
	"like_ledger_size_mb":        8,
	"like_ledger_ttl":            24 * time.Hour,
	"notice_path":                "",
	"notice_password":            "",
	"metrics_enabled":            true,
	"log_level":                  "info",
	"log_format":                 "json",
}

// Load 从环境变量（以及可选的 CONFIG_FILE）读取应用配置，并为缺失项提供默认值。
func Load() (AppConfig, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := strings.TrimSpace(os.Getenv("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (AppConfig, error) {
	port := strings.TrimSpace(v.GetString("port"))
	listenAddr := strings.TrimSpace(v.GetString("listen_addr"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	cfg := AppConfig{
		ListenAddr:    listenAddr,
		Port:          port,
		GinMode:       strings.TrimSpace(v.GetString("gin_mode")),
		DatabasePath:  strings.TrimSpace(v.GetString("database_path")),
		QuestionsFile: strings.TrimSpace(v.GetString("questions_file")),
		VisitsFile:    strings.TrimSpace(v.GetString("visits_file")),
		SessionSecret: strings.TrimSpace(v.GetString("session_secret")),
		AdminPassword: v.GetString("admin_password"),
		Sheets: SheetsConfig{
			SpreadsheetID:      strings.TrimSpace(v.GetString("sheets_spreadsheet_id")),
			CredentialsFile:    strings.TrimSpace(v.GetString("sheets_credentials_file")),
			QuestionsWorksheet: strings.TrimSpace(v.GetString("sheets_questions_worksheet")),
			VisitsWorksheet:    strings.TrimSpace(v.GetString("sheets_visits_worksheet")),
			Timeout:            v.GetDuration("sheets_timeout"),
		},
		Timezone:         strings.TrimSpace(v.GetString("timezone")),
		ActiveWindow:     v.GetDuration("active_window"),
		LikeLedgerSizeMB: v.GetInt("like_ledger_size_mb"),
		LikeLedgerTTL:    v.GetDuration("like_ledger_ttl"),
		NoticePath:       strings.TrimSpace(v.GetString("notice_path")),
		NoticePassword:   v.GetString("notice_password"),
		MetricsEnabled:   v.GetBool("metrics_enabled"),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		LogFormat:        strings.ToLower(strings.TrimSpace(v.GetString("log_format"))),
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.Location = loc

	return cfg, nil
}

// Validate 校验配置字段，返回首个不合法项的错误信息。
func (c *AppConfig) Validate() error {
	v := validate.Struct(c)
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}

	if c.Sheets.Timeout <= 0 {
		return fmt.Errorf("invalid config: SHEETS_TIMEOUT must be positive")
	}
	if c.ActiveWindow <= 0 {
		return fmt.Errorf("invalid config: ACTIVE_WINDOW must be positive")
	}
	if c.LikeLedgerTTL < time.Second {
		return fmt.Errorf("invalid config: LIKE_LEDGER_TTL must be at least 1s")
	}
	if (c.Sheets.SpreadsheetID == "") != (c.Sheets.CredentialsFile == "") {
		return fmt.Errorf("invalid config: SHEETS_SPREADSHEET_ID and SHEETS_CREDENTIALS_FILE must be set together")
	}

	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid config: TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

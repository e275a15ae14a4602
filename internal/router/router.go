package router

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/questionbox/internal/handler"
	"github.com/questionbox/internal/logger"
	"github.com/questionbox/internal/metrics"
	"github.com/rs/zerolog"
)

const sessionName = "questionbox_session"

// Options 描述路由层需要的横切组件。
type Options struct {
	SessionSecret string
	Metrics       metrics.Recorder
	Logger        zerolog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(opts.Logger))

	rec := opts.Metrics
	if rec == nil {
		rec = metrics.New(false)
	}
	r.Use(metrics.GinMiddleware(rec))

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.SetHTMLTemplate(handler.Templates())

	r.GET("/healthz", api.HealthCheck)
	r.GET("/metrics", gin.WrapH(rec.Handler()))
	r.GET("/notice", api.ShowNotice)
	r.POST("/notice/unlock", api.UnlockNotice)

	public := r.Group("/api")
	{
		public.GET("/questions", api.ListQuestions)
		public.POST("/questions", api.SubmitQuestion)
		public.POST("/questions/:id/like", api.LikeQuestion)
	}

	// 后台管理路由
	admin := r.Group("/admin")
	{
		admin.POST("/login", api.Login)
		admin.POST("/logout", api.Logout)

		// 需要认证的后台路由
		auth := admin.Group("/api")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/questions", api.AdminListQuestions)
			auth.DELETE("/questions", api.AdminDeleteAllQuestions)
			auth.PUT("/questions/:id", api.AdminUpdateQuestion)
			auth.DELETE("/questions/:id", api.AdminDeleteQuestion)
			auth.POST("/questions/purge-below-likes", api.PurgeBelowLikes)
			auth.POST("/questions/purge-older-than", api.PurgeOlderThan)
			auth.POST("/questions/reset-likes", api.ResetLikes)

			auth.GET("/stats/questions", api.QuestionStats)
			auth.GET("/stats/visits", api.VisitStats)
			auth.POST("/visits/reset", api.ResetVisits)

			auth.GET("/export/csv", api.ExportCSV)
			auth.GET("/export/xlsx", api.ExportExcel)

			auth.GET("/storage", api.StorageStatus)
		}
	}

	return r
}

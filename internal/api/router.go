package api

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/findoc_analyzer/config"
	"github.com/qs3c/findoc_analyzer/internal/api/handler"
	"github.com/qs3c/findoc_analyzer/internal/api/middleware"
)

// multipartOverhead 为 query 字段和 multipart 边界预留的空间
const multipartOverhead = 1 << 20

type Router struct {
	analysisHandler *handler.AnalysisHandler
	cfg             *config.Config
}

func NewRouter(analysisHandler *handler.AnalysisHandler, cfg *config.Config) *Router {
	return &Router{
		analysisHandler: analysisHandler,
		cfg:             cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.CORS(r.cfg.CORS))

	if r.cfg.Upload.MaxSize > 0 {
		engine.MaxMultipartMemory = r.cfg.Upload.MaxSize
	}

	// 健康检查
	engine.GET("/", handler.Health)

	// 文档分析
	engine.POST("/analyze", middleware.BodyLimit(r.uploadLimit()), r.analysisHandler.Analyze)
	engine.GET("/status/:job_id", r.analysisHandler.Status)

	return engine
}

// uploadLimit 上传请求体上限，0 表示不限制
func (r *Router) uploadLimit() int64 {
	if r.cfg.Upload.MaxSize <= 0 {
		return 0
	}
	return r.cfg.Upload.MaxSize + multipartOverhead
}

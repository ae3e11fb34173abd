package http

import "github.com/gin-gonic/gin"

// Register attaches workflow routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/status", h.status)

	p := rg.Group("/projects/:id")
	p.GET("/mapping", h.getMapping)
	p.PUT("/mapping", h.setMapping)
	p.POST("/layers/buildings", h.importLayer)
	p.POST("/analysis/start", h.startAnalysis)
	p.POST("/analysis/resume", h.resumeAnalysis)
	p.POST("/analysis/step", h.stepAnalysis)
	p.POST("/analysis/cancel", h.cancelAnalysis)
	p.GET("/analysis/status", h.analysisStatus)
}

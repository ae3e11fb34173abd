package http

import "github.com/gin-gonic/gin"

// Register attaches catalogue routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/uses", h.uses)
	rg.GET("/u-values", h.uValues)
}

package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	adomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/analysis/domain"
	bdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/domain"
	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/buildings/importer"
	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
	pdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/projects/domain"
)

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": h.state.CurrentStatus()})
}

func (h *Handler) selectProject(c *gin.Context) bool {
	if _, err := h.state.SelectProject(c.Param("id")); err != nil {
		writeError(c, err)
		return false
	}
	return true
}

func (h *Handler) getMapping(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}
	m, err := h.state.Mapping()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "mapping": m})
}

type setMappingReq struct {
	Mapping map[string]string `json:"mapping"`
}

func (h *Handler) setMapping(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}

	var req setMappingReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Mapping == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	saved, err := h.state.SetMapping(mapdomain.Mapping(req.Mapping))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "mapping": saved})
}

type importReq struct {
	Path string `json:"path"`
}

func (h *Handler) importLayer(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}

	var req importReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	res, err := h.state.ImportLayer(importer.NewGeoJSONSource(strings.TrimSpace(req.Path)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": res})
}

func (h *Handler) startAnalysis(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}
	run, err := h.state.StartAnalysis(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "run": run})
}

func (h *Handler) resumeAnalysis(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}
	run, err := h.state.ResumeAnalysis(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "run": run})
}

func (h *Handler) stepAnalysis(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}
	run, done, err := h.state.StepAnalysis(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "run": run, "done": done})
}

func (h *Handler) cancelAnalysis(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}
	run, err := h.state.CancelAnalysis(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "run": run})
}

func (h *Handler) analysisStatus(c *gin.Context) {
	if !h.selectProject(c) {
		return
	}
	run, err := h.state.AnalysisStatus()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "run": run})
}

// writeError maps domain errors to HTTP statuses. Per-building analysis
// failures never reach here; they live inside run snapshots.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pdomain.ErrNotFound), errors.Is(err, adomain.ErrNoRunStarted):
		status = http.StatusNotFound
	case errors.Is(err, adomain.ErrAlreadyRunning), errors.Is(err, adomain.ErrRunNotActive):
		status = http.StatusConflict
	case errors.Is(err, pdomain.ErrCorrupt),
		errors.Is(err, mapdomain.ErrUnknownColumn),
		errors.Is(err, mapdomain.ErrMappingIncomplete),
		errors.Is(err, bdomain.ErrNoLayerImported),
		errors.Is(err, adomain.ErrRoutineUnavailable):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

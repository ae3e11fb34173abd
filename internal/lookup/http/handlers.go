package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/lookup"
)

func (h *Handler) uses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "uses": lookup.StandardUses})
}

// uValues resolves envelope transmittances for a country, construction year
// and building use:
//
//	GET /u-values?country=Italy&year=1985&use=Residential
func (h *Handler) uValues(c *gin.Context) {
	country := strings.TrimSpace(c.Query("country"))
	use := strings.TrimSpace(c.Query("use"))
	year, err := strconv.Atoi(c.Query("year"))
	if country == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "country and numeric year required"})
		return
	}

	ctx := c.Request.Context()

	countryID, err := h.svc.CountryID(ctx, country)
	if err != nil {
		writeError(c, err)
		return
	}
	periodID, err := h.svc.PeriodID(ctx, year)
	if err != nil {
		writeError(c, err)
		return
	}

	residential := lookup.IsResidential(use)
	u, err := h.svc.UValuesFor(ctx, countryID, periodID, residential)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "u_values": u, "residential": residential})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, lookup.ErrCountryNotFound),
		errors.Is(err, lookup.ErrPeriodNotFound),
		errors.Is(err, lookup.ErrNoUValues):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"ok": false, "error": err.Error()})
}

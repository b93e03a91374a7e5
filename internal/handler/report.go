package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/CageChen/astrohub/internal/collection"
	"github.com/CageChen/astrohub/internal/report"
	"github.com/gin-gonic/gin"
)

// ReportHandler renders the collection as an HTML page
type ReportHandler struct {
	coll   *collection.Synced
	parser *report.Parser
	fields []string
}

// NewReportHandler creates a report handler whose table shows fields unless
// the request names its own.
func NewReportHandler(coll *collection.Synced, fields []string) *ReportHandler {
	return &ReportHandler{coll: coll, parser: report.NewParser(), fields: fields}
}

// GetReport renders the report page
func (h *ReportHandler) GetReport(c *gin.Context) {
	fields := h.fields
	if q := c.Query("fields"); q != "" {
		fields = strings.Split(q, ",")
	}

	var md []byte
	_ = h.coll.View(c.Request.Context(), func(ctx context.Context, coll *collection.Collection) error {
		md = report.Markdown(report.Summary{
			Title:      c.DefaultQuery("title", "Collection"),
			Pattern:    coll.Pattern(),
			SortFields: h.coll.SortFields(ctx),
			Fields:     fields,
			Handles:    coll.Handles(),
		})
		return nil
	})

	result, err := h.parser.Parse(md)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to render report: " + err.Error(),
		})
		return
	}

	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, result)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(report.Page(result)))
}

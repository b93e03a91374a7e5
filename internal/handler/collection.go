// Package handler provides HTTP handlers for the astrohub REST API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/CageChen/astrohub/internal/astrofile"
	"github.com/CageChen/astrohub/internal/collection"
	"github.com/CageChen/astrohub/internal/config"
	mfs "github.com/CageChen/astrohub/internal/fs"
	"github.com/gin-gonic/gin"
)

// FileSummary is one entry of a file listing
type FileSummary struct {
	Index    int    `json:"index"`
	Path     string `json:"path"`
	Basename string `json:"basename"`
	SortKey  string `json:"sortKey,omitempty"`
}

// ListResponse is the response for listing, sorting and filtering requests
type ListResponse struct {
	Count      int           `json:"count"`
	Label      string        `json:"label"`
	Pattern    string        `json:"pattern"`
	SortFields []string      `json:"sortFields,omitempty"`
	Files      []FileSummary `json:"files"`
}

// CollectionHandler handles collection-wide API requests
type CollectionHandler struct {
	cfg  *config.Config
	coll *collection.Synced
}

// NewCollectionHandler creates a new collection handler
func NewCollectionHandler(cfg *config.Config, coll *collection.Synced) *CollectionHandler {
	return &CollectionHandler{cfg: cfg, coll: coll}
}

// FileSystemFor returns the appropriate FileSystem for the configuration.
func FileSystemFor(cfg *config.Config) mfs.FileSystem {
	if cfg.GitRef != "" {
		return mfs.NewGitFS(cfg.Root, cfg.GitRef)
	}
	return mfs.NewLocalFS(cfg.Root)
}

func (h *CollectionHandler) list(c *collection.Collection, sortFields []string) ListResponse {
	resp := ListResponse{
		Count:      c.Len(),
		Label:      c.Basename(h.cfg.Join),
		Pattern:    c.Pattern(),
		SortFields: sortFields,
		Files:      make([]FileSummary, 0, c.Len()),
	}
	for i, f := range c.All() {
		resp.Files = append(resp.Files, FileSummary{
			Index:    i,
			Path:     f.Path(),
			Basename: f.Basename(),
			SortKey:  f.SortKey(),
		})
	}
	return resp
}

// GetFiles lists the collection in its current order
func (h *CollectionHandler) GetFiles(c *gin.Context) {
	var resp ListResponse
	_ = h.coll.View(c.Request.Context(), func(ctx context.Context, coll *collection.Collection) error {
		resp = h.list(coll, h.coll.SortFields(ctx))
		return nil
	})
	c.JSON(http.StatusOK, resp)
}

// SortRequest represents a request to reorder the collection
type SortRequest struct {
	Fields []string `json:"fields"`
	// Save persists the fields as the configured default.
	Save bool `json:"save"`
}

// Sort reorders the collection by the first matching header field
func (h *CollectionHandler) Sort(c *gin.Context) {
	var req SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request",
		})
		return
	}

	var resp ListResponse
	err := h.coll.View(c.Request.Context(), func(ctx context.Context, coll *collection.Collection) error {
		if len(req.Fields) == 0 {
			req.Fields = h.cfg.SortFields
		}
		if err := h.coll.Sort(ctx, req.Fields...); err != nil {
			return err
		}
		if req.Save {
			h.cfg.SetSortFields(req.Fields)
			if err := h.cfg.Save(); err != nil {
				return fmt.Errorf("saving sort fields: %w", err)
			}
		}
		resp = h.list(coll, req.Fields)
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Filter returns the files whose headers satisfy every query parameter
func (h *CollectionHandler) Filter(c *gin.Context) {
	crit := astrofile.Criteria{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			crit[key] = values[len(values)-1]
		}
	}
	var resp ListResponse
	_ = h.coll.View(c.Request.Context(), func(ctx context.Context, coll *collection.Collection) error {
		resp = h.list(coll.Filter(crit), nil)
		return nil
	})
	c.JSON(http.StatusOK, resp)
}

// GetHeaders returns header values for every file. Fields are given as
// repeated or comma-separated `field` query parameters.
func (h *CollectionHandler) GetHeaders(c *gin.Context) {
	var fields []string
	for _, v := range c.QueryArray("field") {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				fields = append(fields, f)
			}
		}
	}
	if len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "at least one field is required",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fields": fields,
		"values": h.coll.HeaderValues(c.Request.Context(), fields...),
	})
}

// GetData stacks the pixel data and reports the cube's shape and range
func (h *CollectionHandler) GetData(c *gin.Context) {
	cube, err := h.coll.ReadData(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{"shape": cube.Shape, "size": len(cube.Data)}
	if len(cube.Data) > 0 {
		lo, hi, sum := cube.Data[0], cube.Data[0], 0.0
		for _, v := range cube.Data {
			lo, hi = min(lo, v), max(hi, v)
			sum += v
		}
		resp["min"], resp["max"], resp["mean"] = lo, hi, sum/float64(len(cube.Data))
	}
	c.JSON(http.StatusOK, resp)
}

// Reload rescans the pattern
func (h *CollectionHandler) Reload(c *gin.Context) {
	if err := h.coll.Reload(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	h.GetFiles(c)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, collection.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, collection.ErrIndexOutOfRange), errors.Is(err, collection.ErrInvalidPath):
		status = http.StatusNotFound
	case errors.Is(err, collection.ErrShapeMismatch), errors.Is(err, astrofile.ErrMalformed):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

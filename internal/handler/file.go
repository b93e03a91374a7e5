package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/CageChen/astrohub/internal/astrofile"
	"github.com/CageChen/astrohub/internal/collection"
	mfs "github.com/CageChen/astrohub/internal/fs"
	"github.com/gin-gonic/gin"
)

// CardResponse is a single header record
type CardResponse struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Comment string `json:"comment,omitempty"`
}

// FileResponse represents the response for a single file request
type FileResponse struct {
	FileSummary
	Size   int64          `json:"size"`
	Header []CardResponse `json:"header,omitempty"`
}

// FileHandler handles single-file API requests
type FileHandler struct {
	fsys mfs.FileSystem
	coll *collection.Synced
}

// NewFileHandler creates a new file handler
func NewFileHandler(fsys mfs.FileSystem, coll *collection.Synced) *FileHandler {
	return &FileHandler{fsys: fsys, coll: coll}
}

// resolve maps the :index parameter (negative counts from the end) to a handle.
func (h *FileHandler) resolve(c *gin.Context) (FileSummary, astrofile.Handle, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "index must be an integer",
		})
		return FileSummary{}, nil, false
	}

	var summary FileSummary
	var f astrofile.Handle
	err = h.coll.View(c.Request.Context(), func(ctx context.Context, coll *collection.Collection) error {
		var err error
		if f, err = coll.At(index); err != nil {
			return err
		}
		if index < 0 {
			index += coll.Len()
		}
		summary = FileSummary{Index: index, Path: f.Path(), Basename: f.Basename(), SortKey: f.SortKey()}
		return nil
	})
	if err != nil {
		writeError(c, err)
		return FileSummary{}, nil, false
	}
	return summary, f, true
}

// GetFile returns the header of one file
func (h *FileHandler) GetFile(c *gin.Context) {
	summary, f, ok := h.resolve(c)
	if !ok {
		return
	}

	info, err := h.fsys.Stat(f.Path())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "file not found",
		})
		return
	}

	resp := FileResponse{
		FileSummary: summary,
		Size:        info.Size,
	}
	if cf, ok := f.(interface{ Cards() []astrofile.Card }); ok {
		for _, card := range cf.Cards() {
			resp.Header = append(resp.Header, CardResponse{Key: card.Key, Value: card.Value, Comment: card.Comment})
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetRaw returns the file's bytes
func (h *FileHandler) GetRaw(c *gin.Context) {
	_, f, ok := h.resolve(c)
	if !ok {
		return
	}

	content, err := h.fsys.ReadFile(f.Path())
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "file not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("failed to read file: %v", err),
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Basename()))
	c.Data(http.StatusOK, "application/fits", content)
}

package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/exporter"
	"github.com/mcqlab/mcq-review/internal/response"
	"github.com/mcqlab/mcq-review/internal/store"
)

// ExportHandler serves CSV downloads of a collection. Exporting does not
// mutate review state, but it does leave a csv_exported entry in the
// collection's activity log.
type ExportHandler struct {
	store *store.Store
	log   zerolog.Logger
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(st *store.Store, log zerolog.Logger) *ExportHandler {
	return &ExportHandler{
		store: st,
		log:   log.With().Str("component", "export_handler").Logger(),
	}
}

// ExportCSV godoc
// GET /api/v1/collections/:index/export?username=name
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidIndex)
		return
	}
	collection, ok := collectionAt(h.store.Snapshot(), index)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}
	if len(collection.Questions) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
		return
	}

	data, err := exporter.WriteCSV(collection)
	if err != nil {
		h.log.Error().Err(err).Int("collectionIndex", index).Msg("CSV export failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	h.store.RecordExport(index, c.Query("username"))

	c.Header("Content-Disposition", `attachment; filename="mcq_questions.csv"`)
	c.Data(http.StatusOK, "text/csv", data)
}

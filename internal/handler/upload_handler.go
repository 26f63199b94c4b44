package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/model"
	"github.com/mcqlab/mcq-review/internal/parser"
	"github.com/mcqlab/mcq-review/internal/protocol"
	"github.com/mcqlab/mcq-review/internal/response"
	"github.com/mcqlab/mcq-review/internal/store"
	"github.com/mcqlab/mcq-review/internal/validator"
)

// UploadHandler parses MCQ text uploads and feeds them into the store. It is
// the REST twin of the ADD_QUESTIONS / CREATE_COLLECTION commands; the result
// reaches every connected client through the usual broadcast.
type UploadHandler struct {
	store          *store.Store
	log            zerolog.Logger
	maxUploadBytes int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(st *store.Store, log zerolog.Logger, maxUploadBytes int64) *UploadHandler {
	return &UploadHandler{
		store:          st,
		log:            log.With().Str("component", "upload_handler").Logger(),
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateCollectionRequest is the multipart form for a new-collection upload.
// All three metadata tags are required, matching the client-side check.
type CreateCollectionRequest struct {
	Year     string `form:"year" binding:"required"`
	Type     string `form:"type" binding:"required"`
	Unit     string `form:"unit" binding:"required"`
	Username string `form:"username" binding:"required"`
}

// AddQuestionsRequest is the multipart form for appending to a collection.
type AddQuestionsRequest struct {
	Username string `form:"username" binding:"required"`
}

// CreateCollection godoc
// POST /api/v1/collections
// Parses the uploaded .txt into questions and creates a collection from the
// supplied metadata. The new collection becomes current for everyone.
func (h *UploadHandler) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, filename, ok := h.parseUpload(c)
	if !ok {
		return
	}

	h.store.CreateCollection(protocol.CreateCollection{
		Metadata:  model.CollectionMetadata{Year: req.Year, Type: req.Type, Unit: req.Unit},
		Questions: questions,
		Filename:  filename,
		Username:  req.Username,
	})

	response.Success(c, http.StatusCreated, gin.H{
		"question_count": len(questions),
		"filename":       filename,
	})
}

// AddQuestions godoc
// POST /api/v1/collections/:index/questions
// Parses the uploaded .txt and appends its questions to an existing
// collection.
func (h *UploadHandler) AddQuestions(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidIndex)
		return
	}
	if _, ok := collectionAt(h.store.Snapshot(), index); !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	var req AddQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, filename, ok := h.parseUpload(c)
	if !ok {
		return
	}

	h.store.AddQuestions(protocol.AddQuestions{
		Questions:       questions,
		CollectionIndex: index,
		Filename:        filename,
		Username:        req.Username,
	})

	response.Success(c, http.StatusOK, gin.H{
		"question_count": len(questions),
		"filename":       filename,
	})
}

// parseUpload validates and parses the "file" form part. On failure it writes
// the error response itself and returns ok=false.
func (h *UploadHandler) parseUpload(c *gin.Context) ([]model.Question, string, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return nil, "", false
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".txt") {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return nil, "", false
	}
	if fileHeader.Size > h.maxUploadBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return nil, "", false
	}

	content, err := readAll(fileHeader)
	if err != nil {
		h.log.Error().Err(err).Str("filename", fileHeader.Filename).Msg("Upload read failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return nil, "", false
	}

	questions := parser.Parse(content)
	if len(questions) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrNoQuestions)
		return nil, "", false
	}
	return questions, fileHeader.Filename, true
}

func readAll(fileHeader *multipart.FileHeader) (string, error) {
	f, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func collectionAt(state model.AppState, index int) (model.Collection, bool) {
	if index < 0 || index >= len(state.Collections) {
		return model.Collection{}, false
	}
	return state.Collections[index], true
}

package server

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/export"
)

const (
	maxUploadBytes = 64 << 20
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type HTTPConfig struct {
	UploadRPS float64
}

// JobHandler serves the upload and status endpoints.
type JobHandler struct {
	intake   Intake
	status   StatusResolver
	exporter Exporter
	logger   *slog.Logger
}

func NewJobHandler(in Intake, st StatusResolver, ex Exporter, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{intake: in, status: st, exporter: ex, logger: logger}
}

// NewRouter wires middleware and routes onto a fresh gin engine.
func NewRouter(h *JobHandler, cfg HTTPConfig) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), RequestID(h.logger), AccessLog(h.logger))

	upload := NewRateLimiter(RateLimiterConfig{RPS: cfg.UploadRPS, Burst: 2})
	r.POST("/upload", upload, h.Upload)
	r.GET("/status", h.Status)
	r.GET("/status/:uid", h.StatusByPath)
	r.GET("/status/:uid/export.xlsx", h.Export)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

// Upload accepts a multipart "file" and an optional owner ("ownerIdentifier" or "email").
func (h *JobHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	owner := strings.TrimSpace(c.PostForm("ownerIdentifier"))
	if owner == "" {
		owner = strings.TrimSpace(c.PostForm("email"))
	}

	f, err := file.Open()
	if err != nil {
		h.writeError(c, common.StorageError("open upload", err))
		return
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	id, err := h.intake.Upload(c.Request.Context(), file.Filename, owner, f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uid": id.String()})
}

// Status resolves by ?jobId= or by ?ownerIdentifier=&sourceName=.
func (h *JobHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := strings.TrimSpace(c.Query("jobId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(c, common.InvalidInputError("jobId must be a UUID"))
			return
		}
		v, err := h.status.ResolveByID(ctx, id)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
		return
	}

	owner := strings.TrimSpace(c.Query("ownerIdentifier"))
	if owner == "" {
		owner = strings.TrimSpace(c.Query("email"))
	}
	if owner == "" {
		h.writeError(c, common.InvalidInputError("jobId or ownerIdentifier is required"))
		return
	}
	v, err := h.status.ResolveByOwner(ctx, owner, c.Query("sourceName"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *JobHandler) StatusByPath(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		h.writeError(c, common.InvalidInputError("uid must be a UUID"))
		return
	}
	v, err := h.status.ResolveByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *JobHandler) Export(c *gin.Context) {
	id, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		h.writeError(c, common.InvalidInputError("uid must be a UUID"))
		return
	}
	b, err := h.exporter.ExportJobXLSX(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+id.String()+`.xlsx"`)
	c.Data(http.StatusOK, xlsxMIME, b)
}

func (h *JobHandler) writeError(c *gin.Context, err error) {
	code := common.HTTPStatus(err)
	if errors.Is(err, export.ErrNotCompleted) {
		code = http.StatusConflict
	}
	log := common.LoggerFromContext(c.Request.Context(), h.logger)

	msg := err.Error()
	switch {
	case code >= http.StatusInternalServerError:
		log.Error("http.request.failed", "path", c.FullPath(), "status", code, "error", err)
		msg = http.StatusText(code)
	case code == http.StatusNotFound:
		msg = "not found"
	default:
		log.Warn("http.request.rejected", "path", c.FullPath(), "status", code, "error", err)
	}
	c.JSON(code, gin.H{"error": msg})
}

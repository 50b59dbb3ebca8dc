package dictations

import (
	"crypto/subtle"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribe-backend/internal/shared/server/middleware"
	"scribe-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the dictations service.
type Handler struct {
	Svc           *Service
	AdminPassword string
	limiter       *pollLimiter
}

// NewHandler constructs a Handler with the default poll limit window.
func NewHandler(svc *Service, adminPassword string) *Handler {
	return &Handler{
		Svc:           svc,
		AdminPassword: adminPassword,
		limiter:       newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches dictation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/dictations", h.submitDictation)
	rg.GET("/dictations", h.listDictations)
	rg.GET("/dictations/:id", h.getDictation)
	rg.PUT("/dictations/:id/correction", h.saveCorrection)
	rg.DELETE("/dictations/:id", h.deleteDictation)
	rg.POST("/admin/cleanup", h.adminCleanup)
}

func (h *Handler) submitDictation(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["audio"]
	}
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	displayName := c.PostForm("name")
	if displayName == "" {
		displayName = c.PostForm("displayName")
	}

	input := SubmitInput{
		Scope:       c.PostForm("scope"),
		DisplayName: displayName,
		Password:    c.PostForm("password"),
	}

	opened := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "could not read uploaded file", nil)
			return
		}
		opened = append(opened, f)
		input.Files = append(input.Files, SubmitFile{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	d, err := h.Svc.Submit(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoAssets):
			respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		case errors.Is(err, ErrPasswordTooShort):
			respond.Error(c, http.StatusBadRequest, "validation_error", "password is too short", []map[string]string{
				{"field": "password", "issue": "too_short"},
			})
		case errors.Is(err, ErrInvalidScope):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid scope", nil)
		case errors.Is(err, ErrUnsupportedMedia):
			respond.Error(c, http.StatusBadRequest, "validation_error", "unsupported media type", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to submit dictation", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"id":     d.ID,
		"scope":  d.Scope,
		"status": d.Status,
	})
}

func (h *Handler) getDictation(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "dictation id is required", nil)
		return
	}
	scope := c.Query("scope")

	if !h.limiter.Allow(scope, id) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "polling too fast", nil)
		return
	}

	d, err := h.Svc.Get(c.Request.Context(), scope, id, c.Query("password"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "dictation not found", nil)
		case errors.Is(err, ErrUnauthorized):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "password required or incorrect", nil)
		case errors.Is(err, ErrInvalidScope):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid scope", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch dictation", nil)
		}
		return
	}

	resp := gin.H{
		"id":          d.ID,
		"scope":       d.Scope,
		"displayName": d.DisplayName,
		"status":      d.Status,
		"hasPassword": d.HasPassword(),
		"createdAt":   d.CreatedAt,
	}
	switch d.Status {
	case StatusCompleted:
		resp["summary"] = d.Summary
		resp["transcript"] = d.Transcript
		if d.CorrectedSummary != "" {
			resp["correctedSummary"] = d.CorrectedSummary
		}
		if urls := h.Svc.AudioURLs(c.Request.Context(), d); len(urls) > 0 {
			resp["audioUrls"] = urls
		}
	case StatusError:
		resp["summary"] = d.Summary
	}

	respond.OK(c, resp)
}

func (h *Handler) listDictations(c *gin.Context) {
	showAll := false
	if v := c.Query("all"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			showAll = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), c.Query("scope"), showAll)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidScope):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid scope", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list dictations", nil)
		}
		return
	}

	respond.OK(c, gin.H{"items": items})
}

type correctionRequest struct {
	Scope            string `json:"scope"`
	CorrectedSummary string `json:"correctedSummary"`
}

func (h *Handler) saveCorrection(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "dictation id is required", nil)
		return
	}

	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	d, err := h.Svc.SaveCorrection(c.Request.Context(), req.Scope, id, req.CorrectedSummary)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "dictation not found", nil)
		case errors.Is(err, ErrInvalidScope):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid scope", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to save correction", nil)
		}
		return
	}

	respond.OK(c, gin.H{
		"id":               d.ID,
		"correctedSummary": d.CorrectedSummary,
	})
}

func (h *Handler) deleteDictation(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "dictation id is required", nil)
		return
	}

	err := h.Svc.Delete(c.Request.Context(), c.Query("scope"), id, c.Query("password"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "dictation not found", nil)
		case errors.Is(err, ErrUnauthorized):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "password required or incorrect", nil)
		case errors.Is(err, ErrInvalidScope):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid scope", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete dictation", nil)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

type adminCleanupRequest struct {
	Password string `json:"password"`
}

func (h *Handler) adminCleanup(c *gin.Context) {
	if h.AdminPassword == "" {
		respond.Error(c, http.StatusNotFound, "not_found", "not found", nil)
		return
	}

	var req adminCleanupRequest
	_ = c.ShouldBindJSON(&req)
	supplied := req.Password
	if supplied == "" {
		supplied = c.GetHeader("X-Admin-Password")
	}
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.AdminPassword)) != 1 {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "admin password required", nil)
		return
	}

	removed, err := h.Svc.CleanupExpired(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "cleanup failed", nil)
		return
	}

	respond.OK(c, gin.H{"removed": removed})
}

package pairing

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scribe-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the pairing service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the pairing route to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/pairing", h.pairing)
}

type pairingRequest struct {
	Action string `json:"action"`
	Scope  string `json:"scope"`
	Code   string `json:"code"`
}

func (h *Handler) pairing(c *gin.Context) {
	var req pairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	switch req.Action {
	case "register":
		t, err := h.Svc.Register(c.Request.Context(), req.Scope, req.Code)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidScope):
				respond.Error(c, http.StatusBadRequest, "validation_error", "invalid scope", nil)
			case errors.Is(err, ErrInvalidCode):
				respond.Error(c, http.StatusBadRequest, "validation_error", "code must be 6 digits", nil)
			default:
				respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register pairing code", nil)
			}
			return
		}
		respond.OK(c, gin.H{
			"code":      t.Code,
			"expiresAt": t.ExpiresAt(h.Svc.ttl()),
		})
	case "verify":
		t, err := h.Svc.Redeem(c.Request.Context(), req.Code)
		if err != nil {
			switch {
			case errors.Is(err, ErrNotFound):
				respond.Error(c, http.StatusNotFound, "not_found", "pairing code not found", nil)
			case errors.Is(err, ErrExpired):
				respond.Error(c, http.StatusGone, "gone", "pairing code expired", nil)
			default:
				respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to verify pairing code", nil)
			}
			return
		}
		respond.OK(c, gin.H{"scope": t.Scope})
	default:
		respond.Error(c, http.StatusBadRequest, "validation_error", "action must be register or verify", nil)
	}
}

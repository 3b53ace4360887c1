package web

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/blindauth/internal/common"
)

func (h *handlers) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, secret := q.Get("userId"), q.Get("token")
	if userID == "" || secret == "" {
		respondError(w, http.StatusBadRequest, "userId and token are required")
		return
	}

	err := h.verifier.VerifyEmail(r.Context(), userID, secret)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"message": "email verified"})
	case errors.Is(err, common.ErrInvalidToken):
		respondError(w, http.StatusBadRequest, "invalid or expired verification link")
	case errors.Is(err, common.ErrTransientStore):
		h.logger.Error(r.Context(), "verify email failed", "user_id", userID, "error", err)
		respondError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.logger.Error(r.Context(), "verify email failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

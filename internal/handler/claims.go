// Package handler contains the HTTP layer: request parsing, response
// shaping, and nothing else. All decisions live in the service.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/talmor/giftdesk/internal/auth"
	"github.com/talmor/giftdesk/internal/model"
	"github.com/talmor/giftdesk/internal/service"
)

// ClaimAPI is what the handler needs from the service layer. Declared here
// (at the point of use) so handler tests can substitute a mock.
type ClaimAPI interface {
	CheckEligibility(ctx context.Context, userID string) (bool, error)
	VerifyIdentity(ctx context.Context, userID string) (*service.Identity, error)
	ListGifts(ctx context.Context) ([]model.GiftAvailability, error)
	SubmitClaim(ctx context.Context, userID, giftID string) (*model.Receipt, error)
}

type ClaimsHandler struct {
	svc    ClaimAPI
	tokens *auth.TokenService // nil when auth is disabled
	logger *slog.Logger
}

func NewClaimsHandler(svc ClaimAPI, tokens *auth.TokenService, logger *slog.Logger) *ClaimsHandler {
	return &ClaimsHandler{svc: svc, tokens: tokens, logger: logger}
}

type identityRequest struct {
	UserID string `json:"userId"`
}

type submitRequest struct {
	UserID string `json:"userId"`
	GiftID string `json:"giftId"`
}

// HandleEligibility answers POST /api/eligibility: is this id on the lists?
func (h *ClaimsHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	eligible, err := h.svc.CheckEligibility(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"eligible": eligible})
}

// HandleVerify answers POST /api/verify: eligibility plus whether a claim
// already exists. On a successful verification (eligible, not yet claimed)
// it sets the session cookie the claim endpoint requires when auth is on.
func (h *ClaimsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	identity, err := h.svc.VerifyIdentity(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.tokens != nil && identity.Eligible && !identity.AlreadyClaimed {
		token, err := h.tokens.Mint(req.UserID)
		if err != nil {
			h.logger.Error("minting session token failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "An internal error occurred"})
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}

	writeJSON(w, http.StatusOK, identity)
}

// HandleListGifts answers GET /api/gifts with the catalog and remaining
// stock per gift.
func (h *ClaimsHandler) HandleListGifts(w http.ResponseWriter, r *http.Request) {
	gifts, err := h.svc.ListGifts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gifts": gifts})
}

// HandleSubmit answers POST /api/claims. When auth is enabled the user id
// comes from the verified session token, not the body — the body's userId
// is ignored so a verified session cannot submit on behalf of another id.
func (h *ClaimsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	userID := req.UserID
	if h.tokens != nil {
		verified, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "identity verification required"})
			return
		}
		userID = verified
	}

	receipt, err := h.svc.SubmitClaim(r.Context(), userID, req.GiftID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

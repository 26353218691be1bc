package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talmor/giftdesk/internal/apperror"
	"github.com/talmor/giftdesk/internal/auth"
	"github.com/talmor/giftdesk/internal/model"
	"github.com/talmor/giftdesk/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockAPI implements ClaimAPI with canned responses per method.
type mockAPI struct {
	eligible   bool
	eligErr    error
	identity   *service.Identity
	verifyErr  error
	gifts      []model.GiftAvailability
	listErr    error
	receipt    *model.Receipt
	submitErr  error
	submitUser string // records the user id SubmitClaim was called with
}

func (m *mockAPI) CheckEligibility(_ context.Context, _ string) (bool, error) {
	return m.eligible, m.eligErr
}

func (m *mockAPI) VerifyIdentity(_ context.Context, _ string) (*service.Identity, error) {
	return m.identity, m.verifyErr
}

func (m *mockAPI) ListGifts(_ context.Context) ([]model.GiftAvailability, error) {
	return m.gifts, m.listErr
}

func (m *mockAPI) SubmitClaim(_ context.Context, userID, _ string) (*model.Receipt, error) {
	m.submitUser = userID
	return m.receipt, m.submitErr
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHandleEligibility(t *testing.T) {
	h := NewClaimsHandler(&mockAPI{eligible: true}, nil, testLogger())

	rec := postJSON(t, h.HandleEligibility, `{"userId":"111222333"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"eligible":true}`, rec.Body.String())
}

func TestHandleEligibility_BadJSON(t *testing.T) {
	h := NewClaimsHandler(&mockAPI{}, nil, testLogger())

	rec := postJSON(t, h.HandleEligibility, `{"userId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Error)
}

func TestHandleVerify_SetsSessionCookie(t *testing.T) {
	tokens, err := auth.NewTokenService("test-secret-test-secret", time.Minute)
	require.NoError(t, err)
	h := NewClaimsHandler(&mockAPI{identity: &service.Identity{Eligible: true}}, tokens, testLogger())

	rec := postJSON(t, h.HandleVerify, `{"userId":"111222333"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	userID, err := tokens.Validate(cookies[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "111222333", userID)
}

func TestHandleVerify_NoCookieWhenAlreadyClaimed(t *testing.T) {
	tokens, err := auth.NewTokenService("test-secret-test-secret", time.Minute)
	require.NoError(t, err)
	h := NewClaimsHandler(&mockAPI{identity: &service.Identity{Eligible: true, AlreadyClaimed: true}}, tokens, testLogger())

	rec := postJSON(t, h.HandleVerify, `{"userId":"111222333"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.JSONEq(t, `{"eligible":true,"alreadyClaimed":true}`, rec.Body.String())
}

func TestHandleListGifts(t *testing.T) {
	api := &mockAPI{gifts: []model.GiftAvailability{
		{Gift: model.Gift{ID: "coffee-kit", Title: "Coffee Kit", Stock: 5}, Remaining: 3},
	}}
	h := NewClaimsHandler(api, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.HandleListGifts(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Gifts []model.GiftAvailability `json:"gifts"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Gifts, 1)
	assert.Equal(t, 3, resp.Gifts[0].Remaining)
}

func TestHandleSubmit_Created(t *testing.T) {
	api := &mockAPI{receipt: &model.Receipt{ClaimID: "777", SubmissionID: "sub-1", GiftTitle: "Coffee Kit"}}
	h := NewClaimsHandler(api, nil, testLogger())

	rec := postJSON(t, h.HandleSubmit, `{"userId":"111222333","giftId":"coffee-kit"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "111222333", api.submitUser)

	var receipt model.Receipt
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&receipt))
	assert.Equal(t, "777", receipt.ClaimID)
}

func TestHandleSubmit_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
		retryable  bool
	}{
		{"duplicate", apperror.AlreadyClaimed(), http.StatusConflict, "already_claimed", false},
		{"out of stock", apperror.OutOfStock("Coffee Kit"), http.StatusGone, "out_of_stock", false},
		{"inventory update", apperror.InventoryUpdateFailed("coffee-kit"), http.StatusBadGateway, "inventory_update_failed", false},
		{"submission", apperror.SubmissionFailed(assert.AnError), http.StatusServiceUnavailable, "submission_failed", true},
		{"unavailable", apperror.Unavailable(assert.AnError), http.StatusServiceUnavailable, "service_unavailable", true},
		{"validation", apperror.ValidationFailed("giftId", "unknown gift"), http.StatusBadRequest, "validation_error", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewClaimsHandler(&mockAPI{submitErr: tt.err}, nil, testLogger())
			rec := postJSON(t, h.HandleSubmit, `{"userId":"111222333","giftId":"coffee-kit"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantType, resp.Error)
			assert.Equal(t, tt.retryable, resp.Retryable)
		})
	}
}

func TestHandleSubmit_AuthTakesUserFromToken(t *testing.T) {
	tokens, err := auth.NewTokenService("test-secret-test-secret", time.Minute)
	require.NoError(t, err)
	api := &mockAPI{receipt: &model.Receipt{ClaimID: "777"}}
	h := NewClaimsHandler(api, tokens, testLogger())

	token, err := tokens.Mint("999888777")
	require.NoError(t, err)

	// The body claims a different user id; the token must win.
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"111222333","giftId":"coffee-kit"}`))
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	rec := httptest.NewRecorder()
	auth.RequireVerified(tokens)(http.HandlerFunc(h.HandleSubmit)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "999888777", api.submitUser)
}

func TestHandleSubmit_AuthRejectsMissingToken(t *testing.T) {
	tokens, err := auth.NewTokenService("test-secret-test-secret", time.Minute)
	require.NoError(t, err)
	h := NewClaimsHandler(&mockAPI{}, tokens, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"userId":"111222333","giftId":"coffee-kit"}`))
	rec := httptest.NewRecorder()
	auth.RequireVerified(tokens)(http.HandlerFunc(h.HandleSubmit)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

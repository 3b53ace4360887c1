package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct {
	err     error
	gotUser string
	gotTok  string
}

func (f *fakeVerifier) VerifyEmail(_ context.Context, userID, secret string) error {
	f.gotUser, f.gotTok = userID, secret
	return f.err
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("m")) })
	h := Router(Options{Verifier: &fakeVerifier{}, Metrics: metrics})

	rec := do(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, h, "/metrics")
	assert.Equal(t, "m", rec.Body.String())

	rec = do(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady_Failing(t *testing.T) {
	h := Router(Options{Verifier: &fakeVerifier{}, Ready: func(context.Context) error { return errors.New("db down") }})
	rec := do(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerifyEmail(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		target string
		code   int
		key    string
		want   string
	}{
		{"ok", nil, "/verify-email?userId=u1&token=abc%2B1", http.StatusOK, "message", "email verified"},
		{"missing params", nil, "/verify-email?userId=u1", http.StatusBadRequest, "error", "userId and token are required"},
		{"invalid", common.ErrInvalidToken, "/verify-email?userId=u1&token=x", http.StatusBadRequest, "error", "invalid or expired verification link"},
		{"store", fmt.Errorf("db error: %w", common.ErrTransientStore), "/verify-email?userId=u1&token=x", http.StatusServiceUnavailable, "error", "service unavailable"},
		{"other", errors.New("boom"), "/verify-email?userId=u1&token=x", http.StatusInternalServerError, "error", "internal error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := &fakeVerifier{err: tc.err}
			rec := do(t, Router(Options{Verifier: v}), tc.target)
			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tc.want, decodeBody(t, rec)[tc.key])
		})
	}
}

func TestVerifyEmail_DecodesQuery(t *testing.T) {
	v := &fakeVerifier{}
	do(t, Router(Options{Verifier: v}), "/verify-email?userId=u1&token=abc%2B1")
	assert.Equal(t, "u1", v.gotUser)
	assert.Equal(t, "abc+1", v.gotTok)
}

func TestVerifyEmail_RateLimited(t *testing.T) {
	h := Router(Options{Verifier: &fakeVerifier{}, VerifyRateLimit: 2})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, "/verify-email?userId=u&token=t").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, "/verify-email?userId=u&token=t").Code)
}

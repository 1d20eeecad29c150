package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTokenValidator accepts a fixed set of tokens.
type testTokenValidator struct {
	validTokens map[string]string
}

func newTestTokenValidator() *testTokenValidator {
	return &testTokenValidator{validTokens: make(map[string]string)}
}

func (v *testTokenValidator) ValidateToken(tokenString string) (SubjectGetter, error) {
	subject, ok := v.validTokens[tokenString]
	if !ok {
		return nil, fmt.Errorf("invalid token")
	}
	return testClaims(subject), nil
}

type testClaims string

func (c testClaims) GetSubject() (string, error) {
	return string(c), nil
}

func serve(t *testing.T, v TokenValidator, header string) (*httptest.ResponseRecorder, string, bool) {
	t.Helper()
	var operator string
	called := false
	handler := AuthMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		var err error
		operator, err = GetOperator(r)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/runs", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, operator, called
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	v := newTestTokenValidator()
	v.validTokens["good-token"] = "alice"

	w, operator, called := serve(t, v, "Bearer good-token")

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", operator)
}

func TestAuthMiddleware_CaseInsensitiveScheme(t *testing.T) {
	v := newTestTokenValidator()
	v.validTokens["good-token"] = "alice"

	w, _, called := serve(t, v, "bearer good-token")
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	v := newTestTokenValidator()
	v.validTokens["good-token"] = "alice"
	v.validTokens["anonymous"] = ""

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic good-token"},
		{"no token", "Bearer"},
		{"extra parts", "Bearer good-token extra"},
		{"unknown token", "Bearer bad-token"},
		{"empty subject", "Bearer anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, called := serve(t, v, tt.header)
			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.JSONEq(t, `{"error": "unauthorized"}`, w.Body.String())
		})
	}
}

func TestGetOperator_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetOperator(req)
	assert.Error(t, err)

	req = req.WithContext(WithOperator(req.Context(), "bob"))
	operator, err := GetOperator(req)
	require.NoError(t, err)
	assert.Equal(t, "bob", operator)
}

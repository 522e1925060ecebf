package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("user=" + UserFrom(r.Context())))
	})
}

func serve(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	Middleware(secret)(echoUser()).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	valid, err := IssueToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "alice", -time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken("other-secret", "mallory", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"anonymous", "", http.StatusOK, "user="},
		{"valid", "Bearer " + valid, http.StatusOK, "user=alice"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "user=alice"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "invalid token"},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "invalid token"},
		{"basic auth", "Basic YWxpY2U6cHc=", http.StatusUnauthorized, "invalid authorization header format"},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized, "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, tt.header)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Login: "alice"})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = Parse(secret, s)
	assert.Error(t, err)
}

func TestParseFallsBackToSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "bob"},
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	claims, err := Parse(secret, s)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Login)
}

func TestNoSecret(t *testing.T) {
	_, err := IssueToken("", "alice", time.Hour)
	assert.Error(t, err)
	_, err = Parse("", "whatever")
	assert.Error(t, err)
}

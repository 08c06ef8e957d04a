package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	userID := uuid.New()

	token, err := v.Issue(userID, time.Hour)
	require.NoError(t, err)

	got, ok := v.ValidateToken("Bearer " + token)
	assert.True(t, ok)
	assert.Equal(t, userID, got)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	userID := uuid.New()

	expired, err := v.Issue(userID, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWTVerifier("other").Issue(userID, time.Hour)
	require.NoError(t, err)

	notUUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "editor@example.com",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"Empty header", ""},
		{"Garbage", "Bearer not-a-token"},
		{"Expired", "Bearer " + expired},
		{"Wrong key", "Bearer " + otherKey},
		{"Subject is not a user id", "Bearer " + notUUID},
		{"No subject", "Bearer " + noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := v.ValidateToken(tt.header)
			assert.False(t, ok)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := NewJWTVerifier("s3cret")
	userID := uuid.New()

	r := gin.New()
	r.Use(Middleware(v))
	r.GET("/whoami", func(c *gin.Context) {
		id, ok := UserID(c)
		require.True(t, ok)
		c.String(http.StatusOK, id.String())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := v.Issue(userID, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

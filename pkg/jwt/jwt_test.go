package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtpkg "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT() *JWT {
	return &JWT{SignKey: []byte("test-secret"), Issuer: "easypay-admin", ExpireTime: time.Hour}
}

func TestIssueAndParse(t *testing.T) {
	j := newTestJWT()

	token, err := j.IssueToken("ops@example.com", RoleAdmin)
	require.NoError(t, err)

	claims, err := j.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "ops@example.com", claims.Subject)
}

func TestParseRejects(t *testing.T) {
	j := newTestJWT()

	other := &JWT{SignKey: []byte("other-secret"), Issuer: j.Issuer, ExpireTime: time.Hour}
	forged, err := other.IssueToken("x", RoleAdmin)
	require.NoError(t, err)
	_, err = j.Parse(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	wrongIssuer := &JWT{SignKey: j.SignKey, Issuer: "someone-else", ExpireTime: time.Hour}
	token, err := wrongIssuer.IssueToken("x", RoleAdmin)
	require.NoError(t, err)
	_, err = j.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired, err := jwtpkg.NewWithClaims(jwtpkg.SigningMethodHS256, CustomClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwtpkg.RegisteredClaims{
			Issuer:    j.Issuer,
			ExpiresAt: jwtpkg.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(j.SignKey)
	require.NoError(t, err)
	_, err = j.Parse(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	none, err := jwtpkg.NewWithClaims(jwtpkg.SigningMethodNone, CustomClaims{Role: RoleAdmin}).
		SignedString(jwtpkg.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = j.Parse(none)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = (&JWT{}).Parse(token)
	assert.ErrorIs(t, err, ErrSecretNotConfigure)
}

func TestParserTokenHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	j := newTestJWT()

	tests := []struct {
		name   string
		header string
		err    error
	}{
		{"empty", "", ErrHeaderEmpty},
		{"no scheme", "abc", ErrHeaderMalformed},
		{"basic", "Basic abc", ErrHeaderMalformed},
		{"garbage token", "Bearer abc", ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			_, err := j.ParserToken(c)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteerhub/internal/model"
)

var (
	testIssuer = Issuer{Name: "volunteerhub-test", Key: "k", AccessTTL: time.Minute, RefreshTTL: time.Hour}
	volunteer  = model.User{ID: "v1", Name: "Asha", Role: model.RoleVolunteer}
	admin      = model.User{ID: "admin", Name: "Admin User", Role: model.RoleAdmin}
)

func TestIssueAndParse(t *testing.T) {
	pair, err := testIssuer.Issue(volunteer)
	require.NoError(t, err)
	assert.True(t, pair.RefreshExp.After(pair.AccessExp))

	claims, err := testIssuer.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "v1", claims.UserID())
	assert.Equal(t, "Asha", claims.Name)
	assert.Equal(t, model.RoleVolunteer, claims.Role)

	_, err = testIssuer.ParseAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)
	_, err = testIssuer.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestParse_Rejects(t *testing.T) {
	pair, err := testIssuer.Issue(volunteer)
	require.NoError(t, err)

	other := testIssuer
	other.Key = "different"
	_, err = other.ParseAccess(pair.AccessToken)
	assert.Error(t, err)

	renamed := testIssuer
	renamed.Name = "someone-else"
	_, err = renamed.ParseAccess(pair.AccessToken)
	assert.Error(t, err)

	expired := testIssuer
	expired.AccessTTL = -time.Minute
	old, err := expired.Issue(volunteer)
	require.NoError(t, err)
	_, err = testIssuer.ParseAccess(old.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func sign(t *testing.T, role model.Role) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		Type: typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    testIssuer.Name,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(testIssuer.Key))
	require.NoError(t, err)
	return tok
}

func TestParse_Role(t *testing.T) {
	cl, err := testIssuer.ParseAccess(sign(t, "Admin"))
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, cl.Role)

	_, err = testIssuer.ParseAccess(sign(t, "guest"))
	assert.ErrorIs(t, err, model.ErrInvalidRole)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/any", Authenticate(testIssuer), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.UserID())
	})
	r.GET("/admin", Authenticate(testIssuer), RequireRole(model.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	r := newRouter()
	vol, err := testIssuer.Issue(volunteer)
	require.NoError(t, err)
	adm, err := testIssuer.Issue(admin)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/any", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/any", "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/any", vol.RefreshToken).Code)

	w := do(r, "/any", vol.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Body.String())

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", vol.AccessToken).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", adm.AccessToken).Code)
}

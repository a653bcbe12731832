package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/abdelslam1997/light-messages-backend/internal/api/controller"
	"github.com/abdelslam1997/light-messages-backend/internal/auth"
	"github.com/abdelslam1997/light-messages-backend/internal/directory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const authTestSecret = "routes-test-secret"

type fakeDirectory struct {
	users map[int64]directory.User
}

func (d *fakeDirectory) LookupUser(ctx context.Context, id int64) (directory.User, error) {
	u, ok := d.users[id]
	if !ok {
		return directory.User{}, directory.ErrNotFound
	}
	return u, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func authTestToken(t *testing.T, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(authTestSecret))
	require.NoError(t, err)
	return signed
}

func newAuthTestRouter() *gin.Engine {
	dir := &fakeDirectory{users: map[int64]directory.User{
		7: {ID: 7, DisplayName: "Nora"},
	}}
	gate := auth.NewGate(authTestSecret, dir, testLogger())

	r := gin.New()
	r.GET("/protected", RequireAuth(gate), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(controller.ContextUserKey)})
	})
	return r
}

func doProtected(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_BearerTokenResolves(t *testing.T) {
	req := require.New(t)
	r := newAuthTestRouter()

	w := doProtected(r, "Bearer "+authTestToken(t, 7))
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"user_id":7}`, w.Body.String())
}

func TestRequireAuth_MissingBearerSchemeIsRejected(t *testing.T) {
	req := require.New(t)
	r := newAuthTestRouter()

	// A valid token without the scheme must not be accepted.
	w := doProtected(r, authTestToken(t, 7))
	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_NoHeaderIsRejected(t *testing.T) {
	r := newAuthTestRouter()

	w := doProtected(r, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_InvalidTokenIsRejected(t *testing.T) {
	r := newAuthTestRouter()

	w := doProtected(r, "Bearer not.a.token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_WrongSchemeIsRejected(t *testing.T) {
	r := newAuthTestRouter()

	w := doProtected(r, "Basic "+authTestToken(t, 7))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

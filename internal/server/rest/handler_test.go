package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/citygate/internal/auth"
	"github.com/dmitrijs2005/citygate/internal/common"
	"github.com/dmitrijs2005/citygate/internal/cryptox"
	"github.com/dmitrijs2005/citygate/internal/logging"
	"github.com/dmitrijs2005/citygate/internal/server/models"
	"github.com/dmitrijs2005/citygate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/citygate/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestRouter(t *testing.T, rateLimit int) (http.Handler, *auth.Issuer) {
	t.Helper()
	hasher, err := cryptox.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	iss, err := auth.NewIssuer([]byte("test-secret"), auth.DefaultTTL)
	require.NoError(t, err)
	svc, err := services.NewUserService(nil, repomanager.NewMemoryRepositoryManager(), hasher, iss, logging.Nop{})
	require.NoError(t, err)
	return NewRouter(NewHandler(svc, logging.Nop{}), rateLimit, logging.Nop{}), iss
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestRegisterAndLogin(t *testing.T) {
	h, iss := newTestRouter(t, 0)

	rec, body := do(t, h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw123","email":"alice@city.io"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "alice@city.io", body["email"])
	assert.Equal(t, []any{"USER"}, body["roles"])
	assert.NotContains(t, rec.Body.String(), "password")

	rec, body = do(t, h, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"pw123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, []any{"USER"}, body["roles"])

	claims, err := iss.Verify(body["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
}

func TestRegister_Errors(t *testing.T) {
	h, _ := newTestRouter(t, 0)

	rec, _ := do(t, h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "duplicate", body: `{"username":"alice","password":"other"}`, want: "Username already exists"},
		{name: "missing password", body: `{"username":"bob"}`, want: "Missing required field: password"},
		{name: "missing username", body: `{"password":"pw"}`, want: "Missing required field: username"},
		{name: "bad email", body: `{"username":"bob","password":"pw","email":"nope"}`, want: "Invalid field: email"},
		{name: "broken json", body: `{"username":`, want: "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, h, http.MethodPost, "/auth/register", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	h, _ := newTestRouter(t, 0)
	do(t, h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw123"}`, nil)

	wrong, _ := do(t, h, http.MethodPost, "/auth/login", `{"username":"alice","password":"wrongpw"}`, nil)
	unknown, _ := do(t, h, http.MethodPost, "/auth/login", `{"username":"bob","password":"pw123"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.JSONEq(t, `{"error":"Invalid username or password"}`, wrong.Body.String())
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestProfile(t *testing.T) {
	h, _ := newTestRouter(t, 0)
	do(t, h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw123","roles":["USER","OPERATOR"]}`, nil)
	alice := map[string]string{"X-Username": "alice"}

	rec, _ := do(t, h, http.MethodGet, "/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/auth/profile", "", map[string]string{"X-Username": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := do(t, h, http.MethodGet, "/api/auth/profile", "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "", body["email"])
	assert.Equal(t, []any{"USER", "OPERATOR"}, body["roles"])

	rec, body = do(t, h, http.MethodPut, "/auth/profile", `{"email":"alice@city.io"}`, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Profile updated successfully", body["message"])
	assert.Equal(t, "alice@city.io", body["email"])

	rec, _ = do(t, h, http.MethodPut, "/auth/profile", `{"email":"not-an-email"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/auth/profile", `{"email":"x@city.io"}`, map[string]string{"X-Username": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/auth/profile", `{"email":"x@city.io"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	h, _ := newTestRouter(t, 0)
	do(t, h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw123"}`, nil)
	alice := map[string]string{"X-Username": "alice"}

	rec, _ := do(t, h, http.MethodPut, "/auth/change-password", `{"oldPassword":"pw123","newPassword":"n"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := do(t, h, http.MethodPut, "/auth/change-password", `{"oldPassword":"bad","newPassword":"n"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid old password", body["error"])

	rec, body = do(t, h, http.MethodPut, "/auth/change-password", `{"oldPassword":"pw123"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required field: newPassword", body["error"])

	rec, body = do(t, h, http.MethodPut, "/auth/change-password", `{"oldPassword":"pw123","newPassword":"pw456"}`, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Password changed successfully", body["message"])

	rec, _ = do(t, h, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw123"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw456"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPasswordOverByteLimit(t *testing.T) {
	h, _ := newTestRouter(t, 0)
	long := strings.Repeat("é", 40)

	rec, body := do(t, h, http.MethodPost, "/auth/register", `{"username":"alice","password":"`+long+`"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "72 bytes")

	rec, _ = do(t, h, http.MethodPost, "/auth/register", `{"username":"alice","password":"pw123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, h, http.MethodPut, "/auth/change-password", `{"oldPassword":"pw123","newPassword":"`+long+`"}`,
		map[string]string{"X-Username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "72 bytes")

	rec, _ = do(t, h, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw123"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	h, _ := newTestRouter(t, 2)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := do(t, h, http.MethodPost, "/auth/login", `{"username":"x","password":"y"}`, nil)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t, 0)
	rec, body := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

type brokenService struct{}

func (brokenService) Register(context.Context, services.RegisterInput) (*models.User, error) {
	return nil, errors.New("db error: connection refused")
}
func (brokenService) Login(context.Context, string, string) (*services.LoginResult, error) {
	return nil, common.ErrorInternal
}
func (brokenService) GetProfile(context.Context, string) (*models.User, error) {
	return nil, errors.New("boom")
}
func (brokenService) UpdateProfile(context.Context, string, services.ProfileUpdate) (*models.User, error) {
	return nil, errors.New("boom")
}
func (brokenService) ChangePassword(context.Context, string, string, string) (bool, error) {
	return false, errors.New("boom")
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	h := NewRouter(NewHandler(brokenService{}, nil), 0, nil)

	rec, _ := do(t, h, http.MethodPost, "/auth/register", `{"username":"a","password":"b"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())

	rec, _ = do(t, h, http.MethodPost, "/auth/login", `{"username":"a","password":"b"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/auth/profile", "", map[string]string{"X-Username": "a"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

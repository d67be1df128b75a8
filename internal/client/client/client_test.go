package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", time.Second)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "://x"} {
		_, err := New(u, time.Second)
		assert.Error(t, err, u)
	}
}

func TestLogin(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, map[string]string{"username": "alice", "password": "pw123"}, in)

		_, _ = w.Write([]byte(`{"username":"alice","roles":["USER"],"token":"tok"}`))
	})

	res, err := c.Login(context.Background(), "alice", "pw123")
	require.NoError(t, err)
	assert.Equal(t, &LoginResponse{Username: "alice", Roles: []string{"USER"}, Token: "tok"}, res)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid username or password"}`))
	})

	_, err := c.Login(context.Background(), "alice", "wrong")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid username or password", apiErr.Message)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProfile_SendsBearerToken(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"1","username":"alice","email":"a@x.io","roles":["USER"]}`))
	})
	c.SetToken("tok")

	p, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "a@x.io", p.Email)
}

func TestForbiddenHasNoBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.Profile(context.Background())

	assert.ErrorIs(t, err, ErrForbidden)
	assert.EqualError(t, err, "request failed with status 403")
}

func TestRegisterUpdateAndChangePassword(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))

		switch r.URL.Path {
		case "/auth/register":
			assert.Equal(t, "bob", in["username"])
			assert.NotContains(t, in, "email")
			_, _ = w.Write([]byte(`{"message":"User registered successfully","username":"bob","email":"","roles":["USER"]}`))
		case "/auth/profile":
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "b@x.io", in["email"])
			_, _ = w.Write([]byte(`{"message":"Profile updated successfully","username":"bob","email":"b@x.io","roles":["USER"]}`))
		case "/auth/change-password":
			assert.Equal(t, "old", in["oldPassword"])
			assert.Equal(t, "new", in["newPassword"])
			_, _ = w.Write([]byte(`{"message":"Password changed successfully"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	p, err := c.Register(ctx, RegisterRequest{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", p.Message)

	p, err = c.UpdateProfile(ctx, "b@x.io")
	require.NoError(t, err)
	assert.Equal(t, "b@x.io", p.Email)

	msg, err := c.ChangePassword(ctx, "old", "new")
	require.NoError(t, err)
	assert.Equal(t, "Password changed successfully", msg)
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL, time.Second)
	require.NoError(t, err)
	srv.Close()

	_, err = c.Profile(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

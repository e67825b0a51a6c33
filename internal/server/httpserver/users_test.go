package httpserver

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func multipartRequest(t *testing.T, method, target string, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func validRegistration() map[string]string {
	return map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Abc123!@",
		"fullName": "Alice Smith",
	}
}

func TestRegister_Created(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, multipartRequest(t, http.MethodPost, "/api/v1/users/register", validRegistration(), pngBytes))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.Equal(t, "alice", f.users.registered.In.Username)
	assert.Equal(t, "Abc123!@", f.users.registered.In.Password)
	require.NotNil(t, f.users.registered.Avatar)
	assert.Equal(t, "image/png", f.users.registered.Avatar.ContentType)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRegister_Validation(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value string
	}{
		{"short username", "username", "al"},
		{"username with digits", "username", "alice99"},
		{"bad email", "email", "not-an-email"},
		{"weak password", "password", "abcdefgh"},
		{"full name with digits", "fullName", "Alice 2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			fields := validRegistration()
			fields[tc.field] = tc.value

			rec, env := f.do(t, multipartRequest(t, http.MethodPost, "/api/v1/users/register", fields, pngBytes))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, env.Success)
			require.Len(t, env.Errors, 1)
			assert.Equal(t, tc.field, env.Errors[0].Field)
			assert.Empty(t, f.users.registered.In.Username, "service must not be called")
		})
	}
}

func TestRegister_NotAnImage(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, multipartRequest(t, http.MethodPost, "/api/v1/users/register", validRegistration(), []byte("plain text")))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "avatar", env.Errors[0].Field)
}

func TestRegister_Conflict(t *testing.T) {
	f := newFixture(t)
	f.users.err = common.NewError(common.ErrorAlreadyExists, "User with email or username already exists")

	rec, env := f.do(t, multipartRequest(t, http.MethodPost, "/api/v1/users/register", validRegistration(), pngBytes))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with email or username already exists", env.Message)
}

func TestLogin_SetsCookies(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, jsonRequest(http.MethodPost, "/api/v1/users/login", `{"email":"alice@example.com","password":"Abc123!@"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"accessToken":"access-1"`)
	assert.Contains(t, string(env.Data), `"refreshToken":"refresh-1"`)

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	for _, name := range []string{"accessToken", "refreshToken"} {
		c, ok := cookies[name]
		require.True(t, ok, name)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
	}
	assert.Equal(t, "refresh-1", cookies["refreshToken"].Value)
	assert.Equal(t, 3600, cookies["refreshToken"].MaxAge)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.users.err = common.WrapError(common.ErrorUnauthorized, "Invalid email or password", common.ErrInvalidCredentials)

	rec, env := f.do(t, jsonRequest(http.MethodPost, "/api/v1/users/login", `{"email":"alice@example.com","password":"nope"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", env.Message)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.users.err = common.NewError(common.ErrorRateLimited, "Too many login attempts, try again later")

	rec, _ := f.do(t, jsonRequest(http.MethodPost, "/api/v1/users/login", `{"email":"alice@example.com","password":"x"}`))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLogout_ClearsCookies(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, authed(httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, alice.ID, f.users.loggedOut)
	for _, c := range rec.Result().Cookies() {
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
	assert.Len(t, rec.Result().Cookies(), 2)
}

func TestRefreshToken_Sources(t *testing.T) {
	t.Run("cookie", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
		req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "from-cookie"})

		rec, _ := f.do(t, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "from-cookie", f.users.refreshed)
	})

	t.Run("body", func(t *testing.T) {
		f := newFixture(t)

		rec, _ := f.do(t, jsonRequest(http.MethodPost, "/api/v1/users/refresh-token", `{"refreshToken":"from-body"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "from-body", f.users.refreshed)
	})

	t.Run("missing", func(t *testing.T) {
		f := newFixture(t)

		rec, _ := f.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, f.users.refreshed)
	})
}

func TestRefreshToken_RejectedIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	// the cause is a not-found lookup; the response must still be 401
	f.users.err = common.WrapError(common.ErrorUnauthorized, "Invalid or expired refresh token", common.ErrorNotFound)

	rec, env := f.do(t, jsonRequest(http.MethodPost, "/api/v1/users/refresh-token", `{"refreshToken":"stale"}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired refresh token", env.Message)
}

func TestAuthenticate(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		f := newFixture(t)
		rec, env := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized request", env.Message)
	})

	t.Run("bearer header", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, alice.ID, f.users.current)
	})

	t.Run("cookie wins over header", func(t *testing.T) {
		f := newFixture(t)
		req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "expired"})
		rec, _ := f.do(t, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, f.users.current)
	})
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, authed(jsonRequest(http.MethodPost, "/api/v1/users/change-Password",
		`{"oldPassword":"Abc123!@","newPassword":"Xyz789#$"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Abc123!@", f.users.oldPw)
	assert.Equal(t, "Xyz789#$", f.users.newPw)
}

func TestChangePassword_WrongOld(t *testing.T) {
	f := newFixture(t)
	f.users.err = common.WrapError(common.ErrorValidation, "Old password is incorrect", common.ErrWrongOldPassword)

	rec, env := f.do(t, authed(jsonRequest(http.MethodPost, "/api/v1/users/change-Password",
		`{"oldPassword":"wrong","newPassword":"Xyz789#$"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Old password is incorrect", env.Message)
}

func TestUpdateProfile_PassesOnlySentFields(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, authed(jsonRequest(http.MethodPatch, "/api/v1/users/update-profile", `{"fullName":"Alice Jones"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.users.profile.FullName)
	assert.Equal(t, "Alice Jones", *f.users.profile.FullName)
	assert.Nil(t, f.users.profile.Username)
	assert.Nil(t, f.users.profile.Email)
}

func TestUpdateAvatar(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, authed(multipartRequest(t, http.MethodPatch, "/api/v1/users/avatar", nil, pngBytes)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.users.avatar)

	f = newFixture(t)
	rec, env := f.do(t, authed(multipartRequest(t, http.MethodPatch, "/api/v1/users/avatar", nil, nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Avatar file is required", env.Message)
}

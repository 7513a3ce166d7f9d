package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"magazyn-plikow/internal/auth"
	"magazyn-plikow/internal/database"
	"magazyn-plikow/internal/models"
	"magazyn-plikow/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func createAPIUser(t *testing.T, email, password string, limitBytes int64) *models.User {
	hashedPassword, err := auth.HashPassword(password)
	require.NoError(t, err)

	user, err := testServer.store.CreateUser(context.Background(), database.CreateUserParams{
		Email:             email,
		PasswordHash:      hashedPassword,
		StorageLimitBytes: limitBytes,
	})
	require.NoError(t, err)
	return user
}

func loginUserForTest(t *testing.T, email, password string) TokenResponse {
	loginReq := LoginRequest{Email: email, Password: password}
	body, _ := json.Marshal(loginReq)
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	http.HandlerFunc(testServer.LoginHandler).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var res TokenResponse
	err := json.Unmarshal(rr.Body.Bytes(), &res)
	require.NoError(t, err)
	return res
}

func uploadFileForTest(t *testing.T, token, filename, content string) *httptest.ResponseRecorder {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	writer.Close()

	req := httptest.NewRequest("POST", "/api/v1/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	router := chi.NewRouter()
	router.With(testServer.AuthMiddleware).Post("/api/v1/files", testServer.UploadFileHandler)
	router.ServeHTTP(rr, req)
	return rr
}

func TestRegisterHandler(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		payload := RegisterRequest{Email: "nowy@test.pl", Password: "password123"}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest("POST", "/api/v1/users", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		http.HandlerFunc(testServer.RegisterHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		var user models.User
		err := json.Unmarshal(rr.Body.Bytes(), &user)
		require.NoError(t, err)
		require.Equal(t, "nowy@test.pl", user.Email)
		require.Equal(t, int64(1<<30), user.StorageLimitBytes)
		require.Zero(t, user.StorageUsedBytes)
	})

	t.Run("duplicate email", func(t *testing.T) {
		payload := RegisterRequest{Email: "nowy@test.pl", Password: "password123"}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest("POST", "/api/v1/users", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		http.HandlerFunc(testServer.RegisterHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("invalid email", func(t *testing.T) {
		payload := RegisterRequest{Email: "not-an-email", Password: "password123"}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest("POST", "/api/v1/users", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		http.HandlerFunc(testServer.RegisterHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("short password", func(t *testing.T) {
		payload := RegisterRequest{Email: "krotkie@test.pl", Password: "abc"}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest("POST", "/api/v1/users", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		http.HandlerFunc(testServer.RegisterHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestLoginHandler_Integration(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		loginReq := LoginRequest{Email: "api_test_user@test.pl", Password: "password"}
		body, _ := json.Marshal(loginReq)
		req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		http.HandlerFunc(testServer.LoginHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var res TokenResponse
		err := json.Unmarshal(rr.Body.Bytes(), &res)
		require.NoError(t, err)
		require.NotEmpty(t, res.AccessToken)
		require.NotEmpty(t, res.RefreshToken)

		var sessionCount int
		err = testServer.store.GetPool().QueryRow(context.Background(), "SELECT COUNT(*) FROM sessions WHERE user_id = $1", testUserClaims.UserID).Scan(&sessionCount)
		require.NoError(t, err)
		require.Equal(t, 1, sessionCount, "A session should be created in the database")
	})

	t.Run("invalid password", func(t *testing.T) {
		loginReq := LoginRequest{Email: "api_test_user@test.pl", Password: "wrong_password"}
		body, _ := json.Marshal(loginReq)
		req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		http.HandlerFunc(testServer.LoginHandler).ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRefreshTokenHandler_Integration(t *testing.T) {
	createAPIUser(t, "refresh_test@test.pl", "strongpassword123", 1<<30)
	loginResp := loginUserForTest(t, "refresh_test@test.pl", "strongpassword123")
	require.NotEmpty(t, loginResp.RefreshToken)

	refreshReq := RefreshTokenRequest{RefreshToken: loginResp.RefreshToken}
	body, _ := json.Marshal(refreshReq)
	req := httptest.NewRequest("POST", "/api/v1/auth/refresh", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(testServer.RefreshTokenHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var firstRefreshResp TokenResponse
	err := json.Unmarshal(rr.Body.Bytes(), &firstRefreshResp)
	require.NoError(t, err)
	require.NotEmpty(t, firstRefreshResp.AccessToken)
	require.NotEqual(t, loginResp.RefreshToken, firstRefreshResp.RefreshToken)

	// Rotation invalidates the spent token.
	oldRefreshReq := RefreshTokenRequest{RefreshToken: loginResp.RefreshToken}
	body, _ = json.Marshal(oldRefreshReq)
	req = httptest.NewRequest("POST", "/api/v1/auth/refresh", bytes.NewReader(body))
	rr = httptest.NewRecorder()
	http.HandlerFunc(testServer.RefreshTokenHandler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUploadFileHandler_QuotaEnforcement(t *testing.T) {
	createAPIUser(t, "quota_api@test.pl", "password123", 1000)
	loginResp := loginUserForTest(t, "quota_api@test.pl", "password123")

	rr := uploadFileForTest(t, loginResp.AccessToken, "pierwszy.txt", strings.Repeat("a", 600))
	require.Equal(t, http.StatusCreated, rr.Code)

	var uploaded models.File
	err := json.Unmarshal(rr.Body.Bytes(), &uploaded)
	require.NoError(t, err)
	require.Equal(t, "pierwszy.txt", uploaded.Name)
	require.Equal(t, int64(600), uploaded.SizeBytes)

	_, err = testServer.storage.ReadAll(storage.PathFragment(uploaded.ID), uploaded.Name)
	require.NoError(t, err, "Blob should exist in storage after upload")

	// 600 + 500 would exceed the 1000-byte limit.
	rr = uploadFileForTest(t, loginResp.AccessToken, "drugi.txt", strings.Repeat("b", 500))
	require.Equal(t, http.StatusForbidden, rr.Code)

	claims, err := auth.VerifyJWT(loginResp.AccessToken, testServer.config.JWT.Secret)
	require.NoError(t, err)

	usage, err := testServer.store.GetStorageUsage(context.Background(), claims.UserID)
	require.NoError(t, err)
	require.Equal(t, int64(600), usage.UsedBytes, "Rejected upload must not change usage")
}

func TestDownloadFileHandler_Integration(t *testing.T) {
	createAPIUser(t, "download_owner@test.pl", "password123", 1<<30)
	createAPIUser(t, "download_stranger@test.pl", "password123", 1<<30)
	ownerLogin := loginUserForTest(t, "download_owner@test.pl", "password123")
	strangerLogin := loginUserForTest(t, "download_stranger@test.pl", "password123")

	fileContent := "tajna zawartość"
	rrUpload := uploadFileForTest(t, ownerLogin.AccessToken, "sekret.txt", fileContent)
	require.Equal(t, http.StatusCreated, rrUpload.Code)

	var uploaded models.File
	require.NoError(t, json.Unmarshal(rrUpload.Body.Bytes(), &uploaded))

	router := chi.NewRouter()
	router.With(testServer.AuthMiddleware).Get("/api/v1/files/{fileId}/content", testServer.DownloadFileHandler)

	url := fmt.Sprintf("/api/v1/files/%s/content", uploaded.ID)

	t.Run("owner can download", func(t *testing.T) {
		req := httptest.NewRequest("GET", url, nil)
		req.Header.Set("Authorization", "Bearer "+ownerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, fileContent, rr.Body.String())
		require.Contains(t, rr.Header().Get("Content-Disposition"), "attachment; filename=\"sekret.txt\"")
	})

	t.Run("buffered download returns the same bytes", func(t *testing.T) {
		req := httptest.NewRequest("GET", url+"?buffered=1", nil)
		req.Header.Set("Authorization", "Bearer "+ownerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, fileContent, rr.Body.String())
	})

	t.Run("stranger is rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", url, nil)
		req.Header.Set("Authorization", "Bearer "+strangerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unknown file returns 404", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/files/no_such_file_00000001/content", nil)
		req.Header.Set("Authorization", "Bearer "+ownerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestDeleteFileHandler_ReleasesQuota(t *testing.T) {
	createAPIUser(t, "delete_api@test.pl", "password123", 1000)
	loginResp := loginUserForTest(t, "delete_api@test.pl", "password123")

	rrUpload := uploadFileForTest(t, loginResp.AccessToken, "do_usuniecia.txt", strings.Repeat("x", 400))
	require.Equal(t, http.StatusCreated, rrUpload.Code)

	var uploaded models.File
	require.NoError(t, json.Unmarshal(rrUpload.Body.Bytes(), &uploaded))

	router := chi.NewRouter()
	router.With(testServer.AuthMiddleware).Delete("/api/v1/files/{fileId}", testServer.DeleteFileHandler)

	req := httptest.NewRequest("DELETE", fmt.Sprintf("/api/v1/files/%s", uploaded.ID), nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.AccessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)

	claims, err := auth.VerifyJWT(loginResp.AccessToken, testServer.config.JWT.Secret)
	require.NoError(t, err)

	usage, err := testServer.store.GetStorageUsage(context.Background(), claims.UserID)
	require.NoError(t, err)
	require.Zero(t, usage.UsedBytes, "Deleting a file should release its reserved bytes")

	_, err = testServer.storage.ReadAll(storage.PathFragment(uploaded.ID), uploaded.Name)
	require.Error(t, err, "Blob should be gone after delete")
}

func TestShareFlow_Integration(t *testing.T) {
	sharer := createAPIUser(t, "sharer@test.pl", "password123", 1<<30)
	recipient := createAPIUser(t, "recipient@test.pl", "password123", 1<<30)

	sharerLogin := loginUserForTest(t, "sharer@test.pl", "password123")
	recipientLogin := loginUserForTest(t, "recipient@test.pl", "password123")

	rrUpload := uploadFileForTest(t, sharerLogin.AccessToken, "wspolny.txt", "dane do udostępnienia")
	require.Equal(t, http.StatusCreated, rrUpload.Code)

	var shared models.File
	require.NoError(t, json.Unmarshal(rrUpload.Body.Bytes(), &shared))

	router := chi.NewRouter()
	router.Use(testServer.AuthMiddleware)
	router.Post("/api/v1/files/{fileId}/share", testServer.GrantAccessHandler)
	router.Delete("/api/v1/files/{fileId}/share/{userId}", testServer.RevokeAccessHandler)
	router.Get("/api/v1/files/{fileId}/access", testServer.CheckAccessHandler)
	router.Get("/api/v1/files/{fileId}/content", testServer.DownloadFileHandler)
	router.Get("/api/v1/shares/incoming", testServer.ListSharedWithMeHandler)
	router.Get("/api/v1/events", testServer.GetEventsHandler)

	shareURL := fmt.Sprintf("/api/v1/files/%s/share", shared.ID)

	t.Run("sharer grants access to recipient", func(t *testing.T) {
		body, _ := json.Marshal(GrantAccessRequest{UserID: recipient.ID})
		req := httptest.NewRequest("POST", shareURL, bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+sharerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var updated models.File
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		require.Contains(t, updated.AuthorizedUsers, recipient.ID)
	})

	t.Run("duplicate grant is rejected", func(t *testing.T) {
		body, _ := json.Marshal(GrantAccessRequest{UserID: recipient.ID})
		req := httptest.NewRequest("POST", shareURL, bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+sharerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("self-share is rejected", func(t *testing.T) {
		body, _ := json.Marshal(GrantAccessRequest{UserID: sharer.ID})
		req := httptest.NewRequest("POST", shareURL, bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+sharerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("recipient sees the file and can download it", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/shares/incoming", nil)
		req.Header.Set("Authorization", "Bearer "+recipientLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var files []models.File
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &files))
		require.Len(t, files, 1)
		require.Equal(t, shared.ID, files[0].ID)

		reqAccess := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/files/%s/access", shared.ID), nil)
		reqAccess.Header.Set("Authorization", "Bearer "+recipientLogin.AccessToken)
		rrAccess := httptest.NewRecorder()
		router.ServeHTTP(rrAccess, reqAccess)

		require.Equal(t, http.StatusOK, rrAccess.Code)
		var access map[string]string
		require.NoError(t, json.Unmarshal(rrAccess.Body.Bytes(), &access))
		require.Equal(t, "shared", access["access"])

		reqDownload := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/files/%s/content", shared.ID), nil)
		reqDownload.Header.Set("Authorization", "Bearer "+recipientLogin.AccessToken)
		rrDownload := httptest.NewRecorder()
		router.ServeHTTP(rrDownload, reqDownload)

		require.Equal(t, http.StatusOK, rrDownload.Code)
		require.Equal(t, "dane do udostępnienia", rrDownload.Body.String())
	})

	t.Run("grant produces an event for the recipient", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/events?since=0", nil)
		req.Header.Set("Authorization", "Bearer "+recipientLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var events []database.Event
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
		require.GreaterOrEqual(t, len(events), 1)
		require.Equal(t, "file_shared_with_you", events[0].EventType)
	})

	t.Run("sharer revokes access", func(t *testing.T) {
		url := fmt.Sprintf("/api/v1/files/%s/share/%d", shared.ID, recipient.ID)
		req := httptest.NewRequest("DELETE", url, nil)
		req.Header.Set("Authorization", "Bearer "+sharerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var updated models.File
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		require.NotContains(t, updated.AuthorizedUsers, recipient.ID)
	})

	t.Run("recipient can no longer access the file", func(t *testing.T) {
		req := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/files/%s/content", shared.ID), nil)
		req.Header.Set("Authorization", "Bearer "+recipientLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestSetStorageLimitHandler_Integration(t *testing.T) {
	admin := createAPIUser(t, "admin@test.pl", "password123", 1<<30)
	target := createAPIUser(t, "target@test.pl", "password123", 1<<30)

	_, err := testServer.store.SetAdmin(context.Background(), admin.ID, true)
	require.NoError(t, err)

	adminLogin := loginUserForTest(t, "admin@test.pl", "password123")
	targetLogin := loginUserForTest(t, "target@test.pl", "password123")

	router := chi.NewRouter()
	router.Use(testServer.AuthMiddleware)
	router.With(testServer.AdminOnly).Post("/api/v1/users/storage-limit", testServer.SetStorageLimitHandler)

	t.Run("admin sets a new limit", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"user_id": %d, "new_limit_bytes": 500}`, target.ID))
		req := httptest.NewRequest("POST", "/api/v1/users/storage-limit", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+adminLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var updated models.User
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		require.Equal(t, int64(500), updated.StorageLimitBytes)
	})

	t.Run("non-numeric limit is rejected", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"user_id": %d, "new_limit_bytes": "abc"}`, target.ID))
		req := httptest.NewRequest("POST", "/api/v1/users/storage-limit", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+adminLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)

		usage, err := testServer.store.GetStorageUsage(context.Background(), target.ID)
		require.NoError(t, err)
		require.Equal(t, int64(500), usage.LimitBytes, "Rejected request must not change the limit")
	})

	t.Run("unknown target returns 404", func(t *testing.T) {
		body := []byte(`{"user_id": 999999, "new_limit_bytes": 500}`)
		req := httptest.NewRequest("POST", "/api/v1/users/storage-limit", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+adminLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		body := []byte(fmt.Sprintf(`{"user_id": %d, "new_limit_bytes": 1000}`, target.ID))
		req := httptest.NewRequest("POST", "/api/v1/users/storage-limit", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+targetLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestGetStorageUsageHandler_NegativeLeft(t *testing.T) {
	user := createAPIUser(t, "negative_left@test.pl", "password123", 1000)
	loginResp := loginUserForTest(t, "negative_left@test.pl", "password123")

	rrUpload := uploadFileForTest(t, loginResp.AccessToken, "duzy.txt", strings.Repeat("z", 800))
	require.Equal(t, http.StatusCreated, rrUpload.Code)

	// Lowering the limit below current usage is allowed; the deficit shows
	// up as negative remaining space.
	_, err := testServer.store.SetStorageLimit(context.Background(), user.ID, testUserClaims.UserID, 500)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.With(testServer.AuthMiddleware).Get("/api/v1/me/storage", testServer.GetStorageUsageHandler)

	req := httptest.NewRequest("GET", "/api/v1/me/storage", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp.AccessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var usage database.StorageUsage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &usage))
	require.Equal(t, int64(500), usage.LimitBytes)
	require.Equal(t, int64(800), usage.UsedBytes)
	require.Equal(t, int64(-300), usage.LeftBytes)
}

func TestShareLinkFlow_Integration(t *testing.T) {
	owner := createAPIUser(t, "link_api_owner@test.pl", "password123", 1<<30)
	member := createAPIUser(t, "link_api_member@test.pl", "password123", 1<<30)
	createAPIUser(t, "link_api_outsider@test.pl", "password123", 1<<30)

	ownerLogin := loginUserForTest(t, "link_api_owner@test.pl", "password123")
	memberLogin := loginUserForTest(t, "link_api_member@test.pl", "password123")
	outsiderLogin := loginUserForTest(t, "link_api_outsider@test.pl", "password123")

	fileContent := "zawartość za linkiem"
	rrUpload := uploadFileForTest(t, ownerLogin.AccessToken, "za_linkiem.txt", fileContent)
	require.Equal(t, http.StatusCreated, rrUpload.Code)

	var file models.File
	require.NoError(t, json.Unmarshal(rrUpload.Body.Bytes(), &file))

	router := chi.NewRouter()
	router.With(testServer.AuthMiddleware).Post("/api/v1/links", testServer.CreateShareLinkHandler)
	router.With(testServer.AuthMiddleware).Get("/api/v1/links", testServer.ListShareLinksHandler)
	router.With(testServer.AuthMiddleware).Delete("/api/v1/links/{linkId}", testServer.DeleteShareLinkHandler)
	router.With(testServer.OptionalAuthMiddleware).Get("/api/v1/links/{token}/content", testServer.DownloadViaLinkHandler)

	var openLink models.ShareLink

	t.Run("owner creates an open link", func(t *testing.T) {
		body, _ := json.Marshal(CreateShareLinkRequest{FileID: file.ID, Description: "Link testowy", TTLMinutes: 60})
		req := httptest.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+ownerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &openLink))
		require.NotEmpty(t, openLink.Token)
		require.Equal(t, file.ID, openLink.FileID)
	})

	t.Run("anonymous caller downloads via open link", func(t *testing.T) {
		req := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/links/%s/content", openLink.Token), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, fileContent, rr.Body.String())
	})

	t.Run("zero TTL is rejected", func(t *testing.T) {
		body, _ := json.Marshal(CreateShareLinkRequest{FileID: file.ID, TTLMinutes: 0})
		req := httptest.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+ownerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("stranger cannot create a link for the file", func(t *testing.T) {
		body, _ := json.Marshal(CreateShareLinkRequest{FileID: file.ID, TTLMinutes: 60})
		req := httptest.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+outsiderLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("restricted link admits only listed users", func(t *testing.T) {
		body, _ := json.Marshal(CreateShareLinkRequest{
			FileID:          file.ID,
			TTLMinutes:      60,
			AuthorizedUsers: []int64{member.ID},
		})
		req := httptest.NewRequest("POST", "/api/v1/links", bytes.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+ownerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		var restricted models.ShareLink
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &restricted))

		downloadURL := fmt.Sprintf("/api/v1/links/%s/content", restricted.Token)

		reqMember := httptest.NewRequest("GET", downloadURL, nil)
		reqMember.Header.Set("Authorization", "Bearer "+memberLogin.AccessToken)
		rrMember := httptest.NewRecorder()
		router.ServeHTTP(rrMember, reqMember)
		require.Equal(t, http.StatusOK, rrMember.Code)

		reqOutsider := httptest.NewRequest("GET", downloadURL, nil)
		reqOutsider.Header.Set("Authorization", "Bearer "+outsiderLogin.AccessToken)
		rrOutsider := httptest.NewRecorder()
		router.ServeHTTP(rrOutsider, reqOutsider)
		require.Equal(t, http.StatusUnauthorized, rrOutsider.Code)

		reqAnon := httptest.NewRequest("GET", downloadURL, nil)
		rrAnon := httptest.NewRecorder()
		router.ServeHTTP(rrAnon, reqAnon)
		require.Equal(t, http.StatusUnauthorized, rrAnon.Code)
	})

	t.Run("expired link returns 410", func(t *testing.T) {
		expired, err := testServer.store.CreateShareLink(context.Background(), database.CreateShareLinkParams{
			Token:     "expired_api_token_00000000000001",
			FileID:    file.ID,
			OwnerID:   owner.ID,
			ExpiresAt: time.Now().Add(-time.Minute),
		})
		require.NoError(t, err)

		req := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/links/%s/content", expired.Token), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusGone, rr.Code)
	})

	t.Run("owner deletes the link", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", fmt.Sprintf("/api/v1/links/%d", openLink.ID), nil)
		req.Header.Set("Authorization", "Bearer "+ownerLogin.AccessToken)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNoContent, rr.Code)

		reqDownload := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/links/%s/content", openLink.Token), nil)
		rrDownload := httptest.NewRecorder()
		router.ServeHTTP(rrDownload, reqDownload)
		require.Equal(t, http.StatusNotFound, rrDownload.Code)
	})
}

func TestSessionHandlers_Integration(t *testing.T) {
	user := createAPIUser(t, "session_api@test.pl", "password123", 1<<30)

	loginUserForTest(t, "session_api@test.pl", "password123")
	loginResp2 := loginUserForTest(t, "session_api@test.pl", "password123")

	router := chi.NewRouter()
	router.Use(testServer.AuthMiddleware)
	router.Get("/api/v1/sessions", testServer.ListSessionsHandler)
	router.Delete("/api/v1/sessions/{sessionId}", testServer.DeleteSessionHandler)
	router.Post("/api/v1/sessions/terminate_all", testServer.TerminateAllSessionsHandler)

	reqList := httptest.NewRequest("GET", "/api/v1/sessions", nil)
	reqList.Header.Set("Authorization", "Bearer "+loginResp2.AccessToken)
	rrList := httptest.NewRecorder()
	router.ServeHTTP(rrList, reqList)

	require.Equal(t, http.StatusOK, rrList.Code)
	var sessions []models.Session
	require.NoError(t, json.Unmarshal(rrList.Body.Bytes(), &sessions))
	require.Len(t, sessions, 2)

	urlDelete := fmt.Sprintf("/api/v1/sessions/%s", sessions[1].ID)
	reqDelete := httptest.NewRequest("DELETE", urlDelete, nil)
	reqDelete.Header.Set("Authorization", "Bearer "+loginResp2.AccessToken)
	rrDelete := httptest.NewRecorder()
	router.ServeHTTP(rrDelete, reqDelete)

	require.Equal(t, http.StatusNoContent, rrDelete.Code)

	remaining, err := testServer.store.ListSessionsForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	reqTerminate := httptest.NewRequest("POST", "/api/v1/sessions/terminate_all", nil)
	reqTerminate.Header.Set("Authorization", "Bearer "+loginResp2.AccessToken)
	rrTerminate := httptest.NewRecorder()
	router.ServeHTTP(rrTerminate, reqTerminate)

	require.Equal(t, http.StatusNoContent, rrTerminate.Code)

	afterTerminate, err := testServer.store.ListSessionsForUser(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, afterTerminate, 0)
}

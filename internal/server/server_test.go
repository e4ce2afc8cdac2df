package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/notestash/notestash/internal/blob"
	"github.com/notestash/notestash/internal/config"
	"github.com/notestash/notestash/internal/metadata"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.BcryptCost = 4

	srv, err := New(cfg,
		WithCatalog(metadata.NewMemoryStore()),
		WithBlobRegistry(blob.NewRegistry(blob.NewMemory())),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func signupAndLogin(t *testing.T, ts *httptest.Server, name, email string) string {
	t.Helper()

	resp := postJSON(t, ts.URL+"/api/auth/signup", map[string]string{
		"name": name, "email": email, "password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/auth/login", map[string]string{
		"email": email, "password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var login struct {
		Token string `json:"token"`
		User  struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	decodeBody(t, resp, &login)
	if login.Token == "" || login.User.ID == "" {
		t.Fatalf("login response incomplete: %+v", login)
	}
	return login.Token
}

func uploadNote(t *testing.T, ts *httptest.Server, token, filename, content string) string {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"department": "CSE", "semester": "4", "subject": "Algorithms", "tag": "midterm",
	} {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatalf("writing form field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating file part: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("writing file part: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/notes/upload", &buf)
	if err != nil {
		t.Fatalf("building upload request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("upload status = %d, body %s", resp.StatusCode, body)
	}
	var uploaded struct {
		Message string `json:"message"`
		Note    struct {
			ID          string `json:"id"`
			BackendKind string `json:"backendKind"`
		} `json:"note"`
	}
	decodeBody(t, resp, &uploaded)
	if uploaded.Note.ID == "" {
		t.Fatal("upload response has no note ID")
	}
	if uploaded.Note.BackendKind != string(blob.KindMemory) {
		t.Errorf("backendKind = %q, want memory", uploaded.Note.BackendKind)
	}
	return uploaded.Note.ID
}

func authedRequest(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}

func TestSignupLoginUploadDownloadFlow(t *testing.T) {
	ts := newTestServer(t)
	token := signupAndLogin(t, ts, "Alex", "alex@example.com")
	noteID := uploadNote(t, ts, token, "algo.pdf", "lecture twelve content")

	// Listing includes the uploaded note with uploader name.
	resp := authedRequest(t, http.MethodGet, ts.URL+"/api/notes/", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var list []struct {
		ID           string `json:"id"`
		UploaderName string `json:"uploaderName"`
	}
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0].ID != noteID {
		t.Fatalf("list = %+v, want the uploaded note", list)
	}
	if list[0].UploaderName != "Alex" {
		t.Errorf("uploaderName = %q, want Alex", list[0].UploaderName)
	}

	// Download through the authenticated file route.
	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/notes/file/"+noteID, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("file status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "algo.pdf") {
		t.Errorf("Content-Disposition = %q, want filename", cd)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "lecture twelve content" {
		t.Errorf("downloaded content = %q", body)
	}

	// The public alias streams the same bytes without a token.
	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/notes/public/file/"+noteID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("public file status = %d, want 200", resp.StatusCode)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "lecture twelve content" {
		t.Errorf("public content = %q", body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/api/notes/",
		"/api/notes/subject/Algorithms",
		"/api/notes/some-id",
	} {
		resp := authedRequest(t, http.MethodGet, ts.URL+path, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	ts := newTestServer(t)
	owner := signupAndLogin(t, ts, "Alex", "alex@example.com")
	other := signupAndLogin(t, ts, "Blake", "blake@example.com")
	noteID := uploadNote(t, ts, owner, "mine.pdf", "private notes")

	resp := authedRequest(t, http.MethodDelete, ts.URL+"/api/notes/"+noteID, other)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("delete by non-owner: status = %d, want 403", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodDelete, ts.URL+"/api/notes/"+noteID, owner)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete by owner: status = %d, want 200", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/notes/"+noteID, owner)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestSubjectAndSemesterRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := signupAndLogin(t, ts, "Alex", "alex@example.com")
	uploadNote(t, ts, token, "algo.pdf", "algorithms notes")

	resp := authedRequest(t, http.MethodGet, ts.URL+"/api/notes/subject/Algorithms", token)
	var bySubject []json.RawMessage
	decodeBody(t, resp, &bySubject)
	if len(bySubject) != 1 {
		t.Errorf("subject route returned %d notes, want 1", len(bySubject))
	}

	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/notes/semester/4", token)
	var bySemester []json.RawMessage
	decodeBody(t, resp, &bySemester)
	if len(bySemester) != 1 {
		t.Errorf("semester route returned %d notes, want 1", len(bySemester))
	}

	resp = authedRequest(t, http.MethodGet, ts.URL+"/api/notes/semester/9", token)
	var empty []json.RawMessage
	decodeBody(t, resp, &empty)
	if len(empty) != 0 {
		t.Errorf("semester 9 returned %d notes, want 0", len(empty))
	}
}

func TestRateEndpoint(t *testing.T) {
	ts := newTestServer(t)
	owner := signupAndLogin(t, ts, "Alex", "alex@example.com")
	rater := signupAndLogin(t, ts, "Blake", "blake@example.com")
	noteID := uploadNote(t, ts, owner, "algo.pdf", "algorithms notes")

	rate := func(token string, stars int) *http.Response {
		data, _ := json.Marshal(map[string]int{"stars": stars})
		req, err := http.NewRequest(http.MethodPost,
			ts.URL+"/api/notes/"+noteID+"/rate", bytes.NewReader(data))
		if err != nil {
			t.Fatalf("building rate request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("rate request failed: %v", err)
		}
		return resp
	}

	resp := rate(rater, 4)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rate status = %d, want 200", resp.StatusCode)
	}
	var rated struct {
		RatingCount   int     `json:"ratingCount"`
		RatingAverage float64 `json:"ratingAverage"`
	}
	decodeBody(t, resp, &rated)
	if rated.RatingCount != 1 || rated.RatingAverage != 4 {
		t.Errorf("rating = %+v, want 1/4.0", rated)
	}

	resp = rate(rater, 0)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out-of-range rating: status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadRejectsBadFileType(t *testing.T) {
	ts := newTestServer(t)
	token := signupAndLogin(t, ts, "Alex", "alex@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("department", "CSE")
	mw.WriteField("semester", "4")
	mw.WriteField("subject", "Algorithms")
	fw, _ := mw.CreateFormFile("file", "script.exe")
	fmt.Fprint(fw, "MZ")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/notes/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("exe upload: status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Code != "InvalidFileType" {
		t.Errorf("code = %q, want InvalidFileType", body.Code)
	}
}

func TestSignupDuplicateEmailConflict(t *testing.T) {
	ts := newTestServer(t)
	signupAndLogin(t, ts, "Alex", "alex@example.com")

	resp := postJSON(t, ts.URL+"/api/auth/signup", map[string]string{
		"name": "Imposter", "email": "alex@example.com", "password": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup: status = %d, want 409", resp.StatusCode)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}
	var health struct {
		Status  string `json:"status"`
		Backend string `json:"backend"`
	}
	decodeBody(t, resp, &health)
	if health.Status != "ok" || health.Backend != "memory" {
		t.Errorf("health = %+v", health)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", resp.StatusCode)
	}
}

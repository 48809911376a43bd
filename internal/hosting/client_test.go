package hosting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := New(server.URL, "acct-1", "token-1", 5*time.Second, testLogger())
	return client, server
}

func TestGetProjectSendsBearerToken(t *testing.T) {
	var gotAuth, gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  map[string]string{"id": "p1", "name": "dl-acme"},
		})
	})

	project, err := client.GetProject(context.Background(), "dl-acme")
	if err != nil {
		t.Fatalf("GetProject returned error: %v", err)
	}
	if project.Name != "dl-acme" {
		t.Fatalf("unexpected project: %+v", project)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("unexpected authorization header: %q", gotAuth)
	}
	if gotPath != "/accounts/acct-1/pages/projects/dl-acme" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestDecodeJoinsEnvelopeErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"errors": []map[string]any{
				{"code": 8000007, "message": "Project not found."},
				{"code": 1001, "message": "Check the project name."},
			},
		})
	})

	_, err := client.GetProject(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", apiErr.Status)
	}
	want := "hosting api error: Project not found., Check the project name."
	if apiErr.Error() != want {
		t.Fatalf("error message mismatch:\n got %q\nwant %q", apiErr.Error(), want)
	}
	if !apiErr.HasCode(8000007) || apiErr.HasCode(9999) {
		t.Fatalf("HasCode mismatch for %+v", apiErr.Errors)
	}
}

func TestCreateDeploymentUploadsManifestAndBlobs(t *testing.T) {
	files := map[string]string{
		"index.html":       "<html>home</html>",
		"about/index.html": "<html>about</html>",
		"robots.txt":       "User-agent: *\nAllow: /",
	}

	var manifest map[string]string
	parts := map[string]string{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if err := json.Unmarshal([]byte(r.FormValue("manifest")), &manifest); err != nil {
			t.Fatalf("decode manifest: %v", err)
		}
		for name, headers := range r.MultipartForm.File {
			file, err := headers[0].Open()
			if err != nil {
				t.Fatalf("open part %s: %v", name, err)
			}
			content, _ := io.ReadAll(file)
			file.Close()
			parts[name] = string(content)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  map[string]string{"id": "dep-1", "url": "https://abc123.dl-acme.pages.dev"},
		})
	})

	deployment, err := client.CreateDeployment(context.Background(), "dl-acme", files)
	if err != nil {
		t.Fatalf("CreateDeployment returned error: %v", err)
	}
	if deployment.URL != "https://abc123.dl-acme.pages.dev" {
		t.Fatalf("unexpected deployment: %+v", deployment)
	}

	if len(manifest) != len(files) {
		t.Fatalf("expected %d manifest entries, got %d", len(files), len(manifest))
	}
	for path, content := range files {
		sum := sha256.Sum256([]byte(content))
		hash := hex.EncodeToString(sum[:])
		if manifest["/"+path] != hash {
			t.Fatalf("manifest entry for /%s = %q, want %q", path, manifest["/"+path], hash)
		}
		if parts[hash] != content {
			t.Fatalf("blob part %s holds %q, want %q", hash, parts[hash], content)
		}
	}
}

func TestCreateDeploymentDeduplicatesIdenticalContent(t *testing.T) {
	files := map[string]string{
		"a/index.html": "same",
		"b/index.html": "same",
	}

	var partCount int
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		partCount = len(r.MultipartForm.File)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "result": map[string]string{"id": "dep-1"}})
	})

	if _, err := client.CreateDeployment(context.Background(), "dl-acme", files); err != nil {
		t.Fatalf("CreateDeployment returned error: %v", err)
	}
	if partCount != 1 {
		t.Fatalf("expected one blob part for identical content, got %d", partCount)
	}
}

func TestCreateDeploymentRejectsEmptyFileSet(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty file set")
	})

	if _, err := client.CreateDeployment(context.Background(), "dl-acme", nil); err == nil {
		t.Fatal("expected error for empty file set")
	}
}

func TestFindZoneByNameQueriesRegistrableRoot(t *testing.T) {
	var gotName string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotName = r.URL.Query().Get("name")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  []map[string]string{{"id": "zone-1", "name": "example.com"}},
		})
	})

	zone, err := client.FindZoneByName(context.Background(), "www.shop.example.com")
	if err != nil {
		t.Fatalf("FindZoneByName returned error: %v", err)
	}
	if zone == nil || zone.ID != "zone-1" {
		t.Fatalf("unexpected zone: %+v", zone)
	}
	if gotName != "example.com" {
		t.Fatalf("expected query for registrable root, got %q", gotName)
	}
}

func TestFindZoneByNameReturnsNilWhenAbsent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true, "result": []any{}})
	})

	zone, err := client.FindZoneByName(context.Background(), "unmanaged.net")
	if err != nil {
		t.Fatalf("FindZoneByName returned error: %v", err)
	}
	if zone != nil {
		t.Fatalf("expected nil zone, got %+v", zone)
	}
}

func TestCreateDNSRecordDefaults(t *testing.T) {
	var payload CreateRecordInput
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  map[string]any{"id": "rec-1", "type": "CNAME"},
		})
	})

	_, err := client.CreateDNSRecord(context.Background(), "zone-1", CreateRecordInput{
		Type:    "CNAME",
		Name:    "www.example.com",
		Content: "dl-acme.pages.dev",
	})
	if err != nil {
		t.Fatalf("CreateDNSRecord returned error: %v", err)
	}
	if payload.Proxied == nil || !*payload.Proxied {
		t.Fatalf("expected proxied to default to true, got %+v", payload.Proxied)
	}
	if payload.TTL != 1 {
		t.Fatalf("expected automatic TTL (1), got %d", payload.TTL)
	}
}

func TestRegistrableRoot(t *testing.T) {
	cases := map[string]string{
		"example.com":      "example.com",
		"www.example.com":  "example.com",
		"a.b.c.example.co": "example.co",
		"Example.COM.":     "example.com",
		"localhost":        "localhost",
	}
	for in, want := range cases {
		if got := RegistrableRoot(in); got != want {
			t.Errorf("RegistrableRoot(%q) = %q, want %q", in, got, want)
		}
	}
}

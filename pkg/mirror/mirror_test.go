package mirror

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func do(t *testing.T, srv *httptest.Server, method, p string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+p, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestServe(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "com/acme/foo/1.0/foo-1.0.jar", "jar bytes")
	writeFile(t, root, "com/acme/foo/1.0/foo-1.0.pom", "<project/>")
	writeFile(t, root, "com/acme/foo/1.0/foo-1.0.pom.sha1", "stored-sum")
	writeFile(t, root, "com/acme/foo/1.0/foo-1.0.jar.lock", "")
	writeFile(t, root, "com/acme/foo/1.0/.foo-1.0.jar.123.part", "partial")
	writeFile(t, filepath.Dir(root), "secret.txt", "outside")

	srv := httptest.NewServer(New(Options{Root: root}))
	defer srv.Close()

	sum := sha1.Sum([]byte("jar bytes"))

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"artifact", http.MethodGet, "/com/acme/foo/1.0/foo-1.0.jar", 200, "jar bytes"},
		{"head", http.MethodHead, "/com/acme/foo/1.0/foo-1.0.jar", 200, ""},
		{"stored checksum", http.MethodGet, "/com/acme/foo/1.0/foo-1.0.pom.sha1", 200, "stored-sum"},
		{"computed checksum", http.MethodGet, "/com/acme/foo/1.0/foo-1.0.jar.sha1", 200, hex.EncodeToString(sum[:])},
		{"missing", http.MethodGet, "/com/acme/foo/2.0/foo-2.0.jar", 404, ""},
		{"missing checksum", http.MethodGet, "/com/acme/foo/2.0/foo-2.0.jar.sha1", 404, ""},
		{"directory", http.MethodGet, "/com/acme/foo/1.0", 404, ""},
		{"lock file", http.MethodGet, "/com/acme/foo/1.0/foo-1.0.jar.lock", 404, ""},
		{"partial download", http.MethodGet, "/com/acme/foo/1.0/.foo-1.0.jar.123.part", 404, ""},
		{"traversal", http.MethodGet, "/../secret.txt", 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, tt.method, tt.path)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantStatus == 200 && body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "classpath_up 1\n")
	})
	srv := httptest.NewServer(New(Options{Root: t.TempDir(), Metrics: metrics}))
	defer srv.Close()

	status, body := do(t, srv, http.MethodGet, "/metrics")
	if status != 200 || !strings.Contains(body, "classpath_up") {
		t.Errorf("GET /metrics = %d %q", status, body)
	}

	srv2 := httptest.NewServer(New(Options{Root: t.TempDir()}))
	defer srv2.Close()
	if status, _ := do(t, srv2, http.MethodGet, "/metrics"); status != 404 {
		t.Errorf("GET /metrics without handler = %d, want 404", status)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(New(Options{Root: t.TempDir()}))
	defer srv.Close()
	if status, _ := do(t, srv, http.MethodPut, "/com/acme/foo/1.0/foo-1.0.jar"); status != http.StatusMethodNotAllowed {
		t.Errorf("PUT status = %d, want 405", status)
	}
}

func TestUpstream(t *testing.T) {
	root := t.TempDir()
	var mu sync.Mutex
	var fetched []string
	upstream := UpstreamFunc(func(_ context.Context, rel string) (string, error) {
		mu.Lock()
		fetched = append(fetched, rel)
		mu.Unlock()
		if rel != "com/acme/bar/2.0/bar-2.0.jar" {
			return "", os.ErrNotExist
		}
		writeFile(t, root, rel, "fetched bytes")
		return filepath.Join(root, filepath.FromSlash(rel)), nil
	})
	srv := httptest.NewServer(New(Options{Root: root, Upstream: upstream}))
	defer srv.Close()

	sum := sha1.Sum([]byte("fetched bytes"))
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"checksum fetches base", "/com/acme/bar/2.0/bar-2.0.jar.sha1", 200, hex.EncodeToString(sum[:])},
		{"cached afterwards", "/com/acme/bar/2.0/bar-2.0.jar", 200, "fetched bytes"},
		{"upstream miss", "/com/acme/bar/3.0/bar-3.0.jar", 404, ""},
		{"lock never fetched", "/com/acme/bar/2.0/bar-2.0.jar.lock", 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodGet, tt.path)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if tt.wantStatus == 200 && body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"com/acme/bar/2.0/bar-2.0.jar", "com/acme/bar/3.0/bar-3.0.jar"}
	if strings.Join(fetched, ",") != strings.Join(want, ",") {
		t.Errorf("upstream fetches = %v, want %v", fetched, want)
	}
}

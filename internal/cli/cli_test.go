package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/classpath/pkg/config"
	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/mirror"
	"github.com/matzehuels/classpath/pkg/observability"
)

// isolate points every settings source at empty temporary locations.
func isolate(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CLASSPATH_LOCAL_REPO", "CLASSPATH_OFFLINE", "CLASSPATH_RESET",
		"CLASSPATH_ALLOW_SNAPSHOTS", "CLASSPATH_CONNECT_TIMEOUT", "CLASSPATH_REQUEST_TIMEOUT",
		"CLASSPATH_CONCURRENCY", "CLASSPATH_REPOS", "CLASSPATH_CACHE", "CLASSPATH_REDIS_URL",
		"http_proxy", "https_proxy", "HTTP_PROXY", "HTTPS_PROXY",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
}

// fixture is a remote repository served over HTTP.
type fixture struct {
	t        *testing.T
	root     string
	local    string
	srv      *httptest.Server
	versions map[string][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	isolate(t)
	f := &fixture{t: t, root: t.TempDir(), local: t.TempDir(), versions: map[string][]string{}}
	f.srv = httptest.NewServer(mirror.New(mirror.Options{Root: f.root}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	p := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		f.t.Fatal(err)
	}
}

// publish deploys g:a:v with compile dependencies on deps.
func (f *fixture) publish(gav string, deps ...string) {
	f.t.Helper()
	p := strings.Split(gav, ":")
	g, a, v := p[0], p[1], p[2]
	ga := path.Join(strings.ReplaceAll(g, ".", "/"), a)

	var b strings.Builder
	fmt.Fprintf(&b, "<project><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version><dependencies>", g, a, v)
	for _, d := range deps {
		c := strings.Split(d, ":")
		fmt.Fprintf(&b, "<dependency><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version></dependency>", c[0], c[1], c[2])
	}
	b.WriteString("</dependencies></project>")
	f.write(path.Join(ga, v, a+"-"+v+".pom"), b.String())
	f.write(path.Join(ga, v, a+"-"+v+".jar"), gav)

	f.versions[g+":"+a] = append(f.versions[g+":"+a], v)
	var m strings.Builder
	fmt.Fprintf(&m, "<metadata><groupId>%s</groupId><artifactId>%s</artifactId><versioning><versions>", g, a)
	for _, v := range f.versions[g+":"+a] {
		fmt.Fprintf(&m, "<version>%s</version>", v)
	}
	m.WriteString("</versions></versioning></metadata>")
	f.write(path.Join(ga, "maven-metadata.xml"), m.String())
}

func (f *fixture) repo() string { return "fixtures(" + f.srv.URL + "/)" }

// localFile is the path of an artifact in the local repository.
func (f *fixture) localFile(g, a, v string) string {
	return filepath.Join(f.local, filepath.FromSlash(strings.ReplaceAll(g, ".", "/")), a, v, a+"-"+v+".jar")
}

// run executes the root command against the fixture repository.
func (f *fixture) run(args ...string) (string, string, error) {
	f.t.Helper()
	base := []string{"-v", "--no-cache", "--local", f.local, "-r", f.repo()}
	return execute(f.t, append(base, args...)...)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func chain(f *fixture) {
	f.publish("com.acme:app:1.0", "com.acme:lib:2.0")
	f.publish("com.acme:lib:2.0", "com.acme:api:1.0")
	f.publish("com.acme:api:1.0")
}

func TestParseProperties(t *testing.T) {
	tests := []struct {
		name string
		defs []string
		want map[string]string
		err  bool
	}{
		{"empty", nil, map[string]string{}, false},
		{"pairs", []string{"http.proxyHost=proxy", "http.proxyPort=3128"}, map[string]string{"http.proxyHost": "proxy", "http.proxyPort": "3128"}, false},
		{"bare key", []string{"offline"}, map[string]string{"offline": "true"}, false},
		{"value with equals", []string{"a=b=c"}, map[string]string{"a": "b=c"}, false},
		{"missing key", []string{"=x"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProperties(tt.defs)
			if (err != nil) != tt.err {
				t.Fatalf("parseProperties() error = %v, want error %v", err, tt.err)
			}
			if tt.err {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseProperties() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("parseProperties()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestLoadSettingsPrecedence(t *testing.T) {
	isolate(t)
	cfg := filepath.Join(t.TempDir(), config.FileName)
	content := "repos = [\"central\"]\n\n[properties]\n\"http.proxyHost\" = \"file-proxy\"\n"
	if err := os.WriteFile(cfg, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLASSPATH_REPOS", "jcenter")

	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"--config", cfg, "-D", "http.proxyHost=flag-proxy", "-r", "corp(http://corp/repo/)", "--no-cache", "cache", "path"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	s := c.settings
	if c.settingsPath != cfg {
		t.Errorf("settingsPath = %q, want %q", c.settingsPath, cfg)
	}
	if got := s.Properties["http.proxyHost"]; got != "flag-proxy" {
		t.Errorf("http.proxyHost = %q, want flag-proxy", got)
	}
	want := []string{"corp(http://corp/repo/)", "jcenter", "central"}
	got := s.RepositoryTokens(nil)
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("RepositoryTokens() = %v, want %v", got, want)
	}
	if s.Cache.Backend != config.CacheNone {
		t.Errorf("Cache.Backend = %q, want %q", s.Cache.Backend, config.CacheNone)
	}
}

func TestResolveCommand(t *testing.T) {
	f := newFixture(t)
	chain(f)

	out, _, err := f.run("resolve", "-s", ",", "com.acme:app:1.0")
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}
	want := strings.Join([]string{
		f.localFile("com.acme", "app", "1.0"),
		f.localFile("com.acme", "lib", "2.0"),
		f.localFile("com.acme", "api", "1.0"),
	}, ",") + "\n"
	if out != want {
		t.Errorf("resolve output = %q, want %q", out, want)
	}
	for _, p := range strings.Split(strings.TrimSpace(out), ",") {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s not downloaded: %v", p, err)
		}
	}
}

func TestResolveCommandOutputFile(t *testing.T) {
	f := newFixture(t)
	chain(f)

	dst := filepath.Join(t.TempDir(), "classpath.txt")
	out, _, err := f.run("resolve", "-o", dst, "--by-root", "com.acme:lib:2.0")
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("by-root output = %q, want a root and two files", data)
	}
	if !strings.HasPrefix(lines[0], "com.acme:lib") {
		t.Errorf("first line = %q, want the root", lines[0])
	}
	if strings.TrimSpace(lines[2]) != f.localFile("com.acme", "api", "1.0") {
		t.Errorf("last line = %q, want api jar", lines[2])
	}
}

func TestResolveCommandMissingArtifact(t *testing.T) {
	f := newFixture(t)
	chain(f)

	_, errOut, err := f.run("resolve", "com.acme:absent:1.0")
	if err == nil {
		t.Fatal("resolve error = nil, want error")
	}
	if !strings.Contains(errOut, "com.acme:absent:1.0") {
		t.Errorf("stderr = %q, want failed artifact reported", errOut)
	}
}

func TestResolveCommandEmbedded(t *testing.T) {
	f := newFixture(t)
	chain(f)

	embedded := t.TempDir()
	out, _, err := f.run("resolve", "--embedded", embedded, "com.acme:lib:2.0", "com.acme:api:1.0")
	if err != nil {
		t.Fatalf("resolve error = %v", err)
	}
	files := strings.Split(strings.TrimSpace(out), string(os.PathListSeparator))
	if len(files) != 2 {
		t.Errorf("files = %v, want lib and api once each", files)
	}
}

func TestTreeCommand(t *testing.T) {
	f := newFixture(t)
	chain(f)

	out, _, err := f.run("tree", "com.acme:app:1.0")
	if err != nil {
		t.Fatalf("tree error = %v", err)
	}
	want := "com.acme:app:1.0\n  com.acme:lib:2.0\n    com.acme:api:1.0\n"
	if out != want {
		t.Errorf("tree output = %q, want %q", out, want)
	}
}

func TestLatestCommand(t *testing.T) {
	f := newFixture(t)
	f.publish("com.acme:api:1.0")
	f.publish("com.acme:api:1.1")
	f.publish("com.acme:api:2.0")

	tests := []struct {
		coords string
		want   string
	}{
		{"com.acme:api", "com.acme:api:2.0"},
		{"com.acme:api:[1.0,2.0)", "com.acme:api:1.1"},
		{"com.acme:api:LATEST", "com.acme:api:2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.coords, func(t *testing.T) {
			out, _, err := f.run("latest", tt.coords)
			if err != nil {
				t.Fatalf("latest error = %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("latest %s = %q, want %q", tt.coords, got, tt.want)
			}
		})
	}
}

func writePOM(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "pom.xml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const projectPOM = `<project>
  <groupId>com.acme</groupId>
  <artifactId>service</artifactId>
  <version>0.1</version>
  <name>Service</name>
  <properties><lib.version>2.0</lib.version></properties>
  <dependencies>
    <dependency><groupId>com.acme</groupId><artifactId>lib</artifactId><version>${lib.version}</version></dependency>
    <dependency><groupId>junit</groupId><artifactId>junit</artifactId><version>4.13</version><scope>test</scope></dependency>
  </dependencies>
</project>`

func TestPOMCommand(t *testing.T) {
	f := newFixture(t)
	chain(f)
	pomPath := writePOM(t, projectPOM)

	out, _, err := f.run("pom", "--deps", pomPath)
	if err != nil {
		t.Fatalf("pom error = %v", err)
	}
	if got := strings.TrimSpace(out); got != "com.acme:lib:2.0" {
		t.Errorf("pom --deps = %q, want com.acme:lib:2.0", got)
	}

	out, _, err = f.run("pom", pomPath)
	if err != nil {
		t.Fatalf("pom error = %v", err)
	}
	for _, want := range []string{"com.acme:service:jar:0.1", "Service", "lib.version=2.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("pom output missing %q:\n%s", want, out)
		}
	}
}

func TestResolvePOM(t *testing.T) {
	f := newFixture(t)
	chain(f)
	pomPath := writePOM(t, projectPOM)

	out, _, err := f.run("resolve", "--pom", pomPath, "-s", ",")
	if err != nil {
		t.Fatalf("resolve --pom error = %v", err)
	}
	want := f.localFile("com.acme", "lib", "2.0") + "," + f.localFile("com.acme", "api", "1.0") + "\n"
	if out != want {
		t.Errorf("resolve --pom = %q, want %q", out, want)
	}

	if _, _, err := f.run("resolve", "--pom", pomPath, "com.acme:app:1.0"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("resolve --pom with coordinates error = %v, want invalid input", err)
	}
}

func TestGraphCommand(t *testing.T) {
	f := newFixture(t)
	chain(f)

	out, _, err := f.run("graph", "com.acme:app:1.0")
	if err != nil {
		t.Fatalf("graph error = %v", err)
	}
	if !strings.HasPrefix(out, "digraph") {
		t.Errorf("graph output does not start with digraph:\n%s", out)
	}
	if !strings.Contains(out, "com.acme:lib:2.0") {
		t.Errorf("graph output missing lib:\n%s", out)
	}

	dst := filepath.Join(t.TempDir(), "deps.dot")
	if _, errOut, err := f.run("graph", "-o", dst, "com.acme:app:1.0"); err != nil {
		t.Fatalf("graph -o error = %v", err)
	} else if !strings.Contains(errOut, dst) {
		t.Errorf("stderr = %q, want output path", errOut)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("graph file not written: %v", err)
	}
}

func TestCommandErrors(t *testing.T) {
	f := newFixture(t)
	chain(f)

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"resolve without roots", []string{"resolve"}, errors.ErrCodeInvalidInput},
		{"bad coordinate", []string{"resolve", "not-a-coordinate"}, errors.ErrCodeParse},
		{"bad graph format", []string{"graph", "-f", "png", "com.acme:app:1.0"}, errors.ErrCodeInvalidInput},
		{"bad property", []string{"-D", "=x", "tree", "com.acme:app:1.0"}, errors.ErrCodeInvalidInput},
		{"embedded without coordinates", []string{"resolve", "--embedded", t.TempDir()}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.run(tt.args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %v", err, tt.code)
			}
		})
	}
}

func TestMissingSettingsFile(t *testing.T) {
	isolate(t)
	missing := filepath.Join(t.TempDir(), "absent.toml")

	if _, _, err := execute(t, "--config", missing, "config", "show"); !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("config show error = %v, want invalid path", err)
	}

	out, _, err := execute(t, "--config", missing, "config", "init")
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if !strings.Contains(out, missing) {
		t.Errorf("config init output = %q, want path", out)
	}
	if _, err := os.Stat(missing); err != nil {
		t.Fatalf("settings file not written: %v", err)
	}

	out, _, err = execute(t, "--config", missing, "config", "init")
	if err != nil {
		t.Fatalf("second config init error = %v", err)
	}
	if !strings.Contains(out, "--force") {
		t.Errorf("second config init output = %q, want hint about --force", out)
	}
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "--offline", "--no-cache", "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	s, err := config.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatalf("Decode() error = %v\n%s", err, out)
	}
	if !s.Offline {
		t.Error("Offline = false, want true")
	}
	if s.Cache.Backend != config.CacheNone {
		t.Errorf("Cache.Backend = %q, want %q", s.Cache.Backend, config.CacheNone)
	}
}

func TestCacheCommands(t *testing.T) {
	isolate(t)
	local := t.TempDir()

	out, _, err := execute(t, "--local", local, "cache", "path", "--artifacts")
	if err != nil {
		t.Fatalf("cache path error = %v", err)
	}
	if got := strings.TrimSpace(out); got != local {
		t.Errorf("cache path --artifacts = %q, want %q", got, local)
	}

	out, _, err = execute(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path error = %v", err)
	}
	dir := strings.TrimSpace(out)

	out, _, err = execute(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	if !strings.Contains(out, "empty") {
		t.Errorf("cache clear on missing dir = %q, want empty notice", out)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, _, err = execute(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear error = %v", err)
	}

	out, _, err = execute(t, "--no-cache", "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	if !strings.Contains(out, "none") {
		t.Errorf("cache clear without file backend = %q, want backend named", out)
	}
}

func TestServeHandler(t *testing.T) {
	f := newFixture(t)
	chain(f)
	t.Cleanup(observability.Reset)

	c := New(io.Discard, LogInfo)
	s := config.Default()
	s.EnvRepos = []string{f.repo()}
	s.Cache.Backend = config.CacheNone
	c.settings = s

	served := t.TempDir()
	ctx := withLogger(context.Background(), c.Logger)
	h, closeFn, err := c.serveHandler(ctx, serveOpts{root: served, proxy: true, metrics: true})
	if err != nil {
		t.Fatalf("serveHandler() error = %v", err)
	}
	defer closeFn()
	srv := httptest.NewServer(h)
	defer srv.Close()

	get := func(p string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/com/acme/lib/2.0/lib-2.0.jar")
	if code != http.StatusOK || body != "com.acme:lib:2.0" {
		t.Errorf("GET lib jar = %d %q, want 200 com.acme:lib:2.0", code, body)
	}
	if _, err := os.Stat(filepath.Join(served, "com", "acme", "lib", "2.0", "lib-2.0.jar")); err != nil {
		t.Errorf("jar not kept in served root: %v", err)
	}
	if code, _ := get("/com/acme/absent/1.0/absent-1.0.jar"); code != http.StatusNotFound {
		t.Errorf("GET absent jar = %d, want 404", code)
	}

	code, body = get("/metrics")
	if code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", code)
	}
	for _, want := range []string{"go_goroutines", "classpath_downloads_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestServeHandlerWithoutProxy(t *testing.T) {
	isolate(t)
	c := New(io.Discard, LogInfo)
	c.settings = config.Default()

	root := t.TempDir()
	h, closeFn, err := c.serveHandler(context.Background(), serveOpts{root: root})
	if err != nil {
		t.Fatalf("serveHandler() error = %v", err)
	}
	defer closeFn()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/com/acme/lib/2.0/lib-2.0.jar", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing jar = %d, want 404", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /metrics = %d, want 404 without metrics", rec.Code)
	}
}

package repository

import (
	"slices"
	"testing"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/proxy"
)

func TestResolveWellKnown(t *testing.T) {
	r := NewRegistry(Options{LocalHome: "/home/me/.m2/repository"}, nil, nil)

	tests := []struct {
		token  string
		id     string
		url    string
		isFile bool
	}{
		{"central", "central", "https://repo1.maven.org/maven2/", false},
		{"central-http", "central", "http://repo1.maven.org/maven2/", false},
		{"jcenter", "jcenter", "https://jcenter.bintray.com/", false},
		{"jcenter-http", "jcenter", "http://jcenter.bintray.com/", false},
		{"local", "local", "file:/home/me/.m2/repository", true},
		{"mine(https://repo.example.com/m2)", "mine", "https://repo.example.com/m2", false},
		{"https://repo.example.com/m2", "https://repo.example.com/m2", "https://repo.example.com/m2", false},
		{" central ", "central", "https://repo1.maven.org/maven2/", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			repo, err := r.Resolve(tt.token)
			if err != nil {
				t.Fatalf("Resolve(%q) error: %v", tt.token, err)
			}
			if repo.ID != tt.id || repo.URL != tt.url {
				t.Errorf("Resolve(%q) = %s, want %s(%s)", tt.token, repo, tt.id, tt.url)
			}
			if repo.IsFile() != tt.isFile {
				t.Errorf("IsFile() = %v, want %v", repo.IsFile(), tt.isFile)
			}
		})
	}
}

func TestResolveInvalid(t *testing.T) {
	r := NewRegistry(Options{}, nil, nil)
	for _, token := range []string{"", "unknown", "bad(ftp://x)", "a(b"} {
		if _, err := r.Resolve(token); !errors.Is(err, errors.ErrCodeParse) {
			t.Errorf("Resolve(%q) error = %v, want %s", token, err, errors.ErrCodeParse)
		}
	}
}

func TestPolicies(t *testing.T) {
	tests := []struct {
		name         string
		opts         Options
		token        string
		wantRelease  Policy
		wantSnapshot Policy
	}{
		{
			name:         "defaults",
			token:        "central",
			wantRelease:  Policy{Enabled: true, Update: UpdateNever, Checksum: ChecksumWarn},
			wantSnapshot: Policy{Enabled: false},
		},
		{
			name:         "force refresh",
			opts:         Options{ForceRefresh: true},
			token:        "central",
			wantRelease:  Policy{Enabled: true, Update: UpdateAlways, Checksum: ChecksumWarn},
			wantSnapshot: Policy{Enabled: false},
		},
		{
			name:         "snapshots mirror release",
			opts:         Options{AllowSnapshots: true},
			token:        "central",
			wantRelease:  Policy{Enabled: true, Update: UpdateNever, Checksum: ChecksumWarn},
			wantSnapshot: Policy{Enabled: true, Update: UpdateNever, Checksum: ChecksumWarn},
		},
		{
			name:         "file repository ignores checksums",
			opts:         Options{AllowSnapshots: true},
			token:        "repo(file:/tmp/repo)",
			wantRelease:  Policy{Enabled: true, Update: UpdateNever, Checksum: ChecksumIgnore},
			wantSnapshot: Policy{Enabled: true, Update: UpdateNever, Checksum: ChecksumIgnore},
		},
		{
			name:         "file repository without snapshots",
			token:        "repo(file:/tmp/repo)",
			wantRelease:  Policy{Enabled: true, Update: UpdateNever, Checksum: ChecksumIgnore},
			wantSnapshot: Policy{Enabled: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, err := NewRegistry(tt.opts, nil, nil).Resolve(tt.token)
			if err != nil {
				t.Fatal(err)
			}
			if repo.Release != tt.wantRelease {
				t.Errorf("Release = %+v, want %+v", repo.Release, tt.wantRelease)
			}
			if repo.Snapshot != tt.wantSnapshot {
				t.Errorf("Snapshot = %+v, want %+v", repo.Snapshot, tt.wantSnapshot)
			}
			if repo.Policy(true) != repo.Snapshot || repo.Policy(false) != repo.Release {
				t.Error("Policy() should select the matching policy")
			}
		})
	}
}

func TestResolveAllDeduplicates(t *testing.T) {
	r := NewRegistry(Options{}, nil, nil)
	repos, err := r.ResolveAll([]string{
		"central",
		"central(https://repo1.maven.org/maven2/)",
		"jcenter",
		"central",
	})
	if err != nil {
		t.Fatal(err)
	}

	var ids []string
	for _, repo := range repos {
		ids = append(ids, repo.String())
	}
	want := []string{"central(https://repo1.maven.org/maven2/)", "jcenter(https://jcenter.bintray.com/)"}
	if !slices.Equal(ids, want) {
		t.Errorf("ResolveAll() = %v, want %v", ids, want)
	}
}

func TestResolveAllDefaultsToCentral(t *testing.T) {
	repos, err := NewRegistry(Options{}, nil, nil).ResolveAll(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(repos) != 1 || repos[0].ID != "central" {
		t.Errorf("ResolveAll(nil) = %v, want [central]", repos)
	}
}

func TestResolveAttachesProxy(t *testing.T) {
	sel, err := proxy.NewSelector(map[string]string{"https_proxy": "proxy.local:3128"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRegistry(Options{}, sel, nil)

	repo, err := r.Resolve("central")
	if err != nil {
		t.Fatal(err)
	}
	if repo.Proxy == nil || repo.Proxy.Host != "proxy.local" || repo.Proxy.Port != 3128 {
		t.Errorf("Proxy = %v, want proxy.local:3128", repo.Proxy)
	}

	local, err := r.Resolve("x(file:/tmp/x)")
	if err != nil {
		t.Fatal(err)
	}
	if local.Proxy != nil {
		t.Errorf("file repository Proxy = %v, want nil", local.Proxy)
	}

	direct, _ := NewRegistry(Options{}, nil, nil).Resolve("central")
	if repo.Equal(direct) {
		t.Error("repositories differing in proxy should not be equal")
	}
}

func TestRepositoryHelpers(t *testing.T) {
	repo := Repository{ID: "r", URL: "https://example.com/m2/"}
	if got := repo.Join("com/acme", "foo", "maven-metadata.xml"); got != "https://example.com/m2/com/acme/foo/maven-metadata.xml" {
		t.Errorf("Join() = %q", got)
	}
	if repo.Dir() != "" {
		t.Errorf("Dir() = %q, want empty for remote repository", repo.Dir())
	}

	local := Repository{ID: "l", URL: "file:/tmp/repo"}
	if local.Dir() != "/tmp/repo" {
		t.Errorf("Dir() = %q, want /tmp/repo", local.Dir())
	}
}

func TestSplitTokens(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"central", []string{"central"}},
		{"central,jcenter", []string{"central", "jcenter"}},
		{"central, jcenter  local", []string{"central", "jcenter", "local"}},
		{" a(https://x/)\tb ", []string{"a(https://x/)", "b"}},
	}

	for _, tt := range tests {
		if got := SplitTokens(tt.input); !slices.Equal(got, tt.want) {
			t.Errorf("SplitTokens(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestMergeTokens(t *testing.T) {
	got := MergeTokens([]string{"a", "b"}, []string{"b", "c", ""}, nil)
	if want := []string{"a", "b", "c"}; !slices.Equal(got, want) {
		t.Errorf("MergeTokens() = %v, want %v", got, want)
	}
}

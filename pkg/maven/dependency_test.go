package maven

import "testing"

func TestParseScope(t *testing.T) {
	tests := []struct {
		input   string
		want    Scope
		wantErr bool
	}{
		{"", ScopeCompile, false},
		{"compile", ScopeCompile, false},
		{"Runtime", ScopeRuntime, false},
		{" provided ", ScopeProvided, false},
		{"test", ScopeTest, false},
		{"system", ScopeSystem, false},
		{"import", "", true},
	}

	for _, tt := range tests {
		got, err := ParseScope(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseScope(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseScope(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestScopeDerive(t *testing.T) {
	tests := []struct {
		child, parent, want Scope
	}{
		{ScopeCompile, "", ScopeCompile},
		{ScopeCompile, ScopeCompile, ScopeCompile},
		{ScopeCompile, ScopeRuntime, ScopeRuntime},
		{ScopeRuntime, ScopeCompile, ScopeRuntime},
		{ScopeCompile, ScopeProvided, ScopeProvided},
		{ScopeRuntime, ScopeProvided, ScopeProvided},
		{ScopeCompile, ScopeTest, ScopeTest},
		{ScopeTest, ScopeCompile, ScopeTest},
		{ScopeSystem, ScopeRuntime, ScopeSystem},
		{"", ScopeRuntime, ScopeRuntime},
	}

	for _, tt := range tests {
		if got := tt.child.Derive(tt.parent); got != tt.want {
			t.Errorf("%q.Derive(%q) = %q, want %q", tt.child, tt.parent, got, tt.want)
		}
		if tt.parent != "" && tt.want.Wider(tt.parent) {
			t.Errorf("%q.Derive(%q) = %q is wider than its importer", tt.child, tt.parent, tt.want)
		}
	}
}

func TestScopeWider(t *testing.T) {
	order := []Scope{ScopeCompile, ScopeRuntime, ScopeProvided, ScopeSystem, ScopeTest}
	for i := 0; i < len(order)-1; i++ {
		if !order[i].Wider(order[i+1]) {
			t.Errorf("%q should be wider than %q", order[i], order[i+1])
		}
		if order[i+1].Wider(order[i]) {
			t.Errorf("%q should not be wider than %q", order[i+1], order[i])
		}
	}
}

func TestScopeClasspath(t *testing.T) {
	for _, s := range []Scope{"", ScopeCompile, ScopeRuntime} {
		if !s.Classpath() {
			t.Errorf("%q should be on the classpath", s)
		}
	}
	for _, s := range []Scope{ScopeProvided, ScopeTest, ScopeSystem} {
		if s.Classpath() {
			t.Errorf("%q should not be on the classpath", s)
		}
	}
}

func TestParseDependencies(t *testing.T) {
	deps, err := ParseDependencies([]string{"g:a:1.0", "g:b"}, "jar")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 {
		t.Fatalf("len = %d, want 2", len(deps))
	}
	for _, d := range deps {
		if d.Scope != ScopeRuntime {
			t.Errorf("Scope = %q, want runtime", d.Scope)
		}
	}
	if deps[1].Version != AnyVersion {
		t.Errorf("Version = %q, want %q", deps[1].Version, AnyVersion)
	}

	if _, err := ParseDependencies([]string{"g:a", "bad"}, "jar"); err == nil {
		t.Error("expected error for malformed coordinate")
	}
}

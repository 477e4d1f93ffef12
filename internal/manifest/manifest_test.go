package manifest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseJSONDefaults(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Manifest
	}{
		{
			name:    "empty object",
			content: `{}`,
			want:    Manifest{Version: DefaultVersion, Dependencies: []string{}},
		},
		{
			name:    "name only",
			content: `{"name":"ledger"}`,
			want:    Manifest{Name: "ledger", Version: DefaultVersion, Dependencies: []string{}},
		},
		{
			name:    "partial routes",
			content: `{"enabled":true,"routes":{"api":"/api/ledger"}}`,
			want: Manifest{
				Version:      DefaultVersion,
				Enabled:      true,
				Dependencies: []string{},
				Routes:       Routes{API: "/api/ledger"},
			},
		},
		{
			name:    "explicit nulls",
			content: `{"name":null,"version":null,"dependencies":null,"routes":null}`,
			want:    Manifest{Version: DefaultVersion, Dependencies: []string{}},
		},
		{
			name:    "unknown keys ignored",
			content: `{"name":"billing","icon":"coin","routes":{"frontend":"/billing","extra":1}}`,
			want: Manifest{
				Name:         "billing",
				Version:      DefaultVersion,
				Dependencies: []string{},
				Routes:       Routes{Frontend: "/billing"},
			},
		},
		{
			name: "fully populated",
			content: `{"name":"ledger","version":"1.0.0","enabled":true,"dependencies":["subscription","auth"],
				"routes":{"frontend":"/ledger","api":"/api/ledger"}}`,
			want: Manifest{
				Name:         "ledger",
				Version:      "1.0.0",
				Enabled:      true,
				Dependencies: []string{"subscription", "auth"},
				Routes:       Routes{Frontend: "/ledger", API: "/api/ledger"},
			},
		},
		{
			name:    "malformed routes pass through",
			content: `{"routes":{"frontend":"ledger without slash","api":""}}`,
			want: Manifest{
				Version:      DefaultVersion,
				Dependencies: []string{},
				Routes:       Routes{Frontend: "ledger without slash"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSON(tc.content)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "truncated", content: `{"name":"ledger"`},
		{name: "trailing garbage", content: `{} x`},
		{name: "null", content: `null`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseJSON(tc.content)
			if err == nil {
				t.Fatalf("expected parse error for %q", tc.content)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if !errors.Is(err, ErrParse) {
				t.Fatalf("expected errors.Is(err, ErrParse) for %v", err)
			}
		})
	}
}

func TestParseJSONFallsBackToDefaults(t *testing.T) {
	defaults := Manifest{Version: DefaultVersion, Dependencies: []string{}}
	tests := []struct {
		name    string
		content string
		want    Manifest
	}{
		{name: "array", content: `[]`, want: defaults},
		{name: "string", content: `"ledger"`, want: defaults},
		{name: "number", content: `42`, want: defaults},
		{name: "bool", content: `true`, want: defaults},
		{name: "enabled not a bool", content: `{"enabled":"yes"}`, want: defaults},
		{name: "name not a string", content: `{"name":7,"version":["1"]}`, want: defaults},
		{name: "dependency not a string", content: `{"dependencies":["auth",1]}`, want: defaults},
		{name: "routes not an object", content: `{"routes":"/ledger"}`, want: defaults},
		{
			name:    "wrong route type keeps the other route",
			content: `{"name":"ledger","enabled":true,"routes":{"frontend":"/ledger","api":5}}`,
			want: Manifest{
				Name:         "ledger",
				Version:      DefaultVersion,
				Enabled:      true,
				Dependencies: []string{},
				Routes:       Routes{Frontend: "/ledger"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSON(tc.content)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.content, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseJSONWrapsDecoderError(t *testing.T) {
	_, err := ParseJSON(`{"name":`)
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected wrapped *json.SyntaxError, got %v", err)
	}
}

func TestParseJSONIdempotent(t *testing.T) {
	content := `{"name":"ledger","enabled":true,"dependencies":["subscription"]}`
	first, err := ParseJSON(content)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := ParseJSON(content)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("parses differ (-first +second):\n%s", diff)
	}
	first.Dependencies[0] = "mutated"
	if second.Dependencies[0] != "subscription" {
		t.Fatalf("parses share dependency storage")
	}
}

func TestParseYAML(t *testing.T) {
	got, err := ParseYAML([]byte(`name: ledger
enabled: true
dependencies:
  - subscription
routes:
  frontend: /ledger
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Manifest{
		Name:         "ledger",
		Version:      DefaultVersion,
		Enabled:      true,
		Dependencies: []string{"subscription"},
		Routes:       Routes{Frontend: "/ledger"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAMLErrors(t *testing.T) {
	for _, payload := range []string{"", "   \n", "- ledger\n", "just text\n", "enabled: [1\n"} {
		if _, err := ParseYAML([]byte(payload)); !errors.Is(err, ErrParse) {
			t.Fatalf("expected parse error for %q, got %v", payload, err)
		}
	}
}

func TestParseTOML(t *testing.T) {
	got, err := ParseTOML([]byte(`name = "ledger"
version = "1.2.0"
enabled = true
dependencies = ["subscription"]

[routes]
api = "/api/ledger"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Manifest{
		Name:         "ledger",
		Version:      "1.2.0",
		Enabled:      true,
		Dependencies: []string{"subscription"},
		Routes:       Routes{API: "/api/ledger"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTOMLErrors(t *testing.T) {
	for _, payload := range []string{"", "  \n", "name = \n", `enabled = "yes"`} {
		if _, err := ParseTOML([]byte(payload)); !errors.Is(err, ErrParse) {
			t.Fatalf("expected parse error for %q, got %v", payload, err)
		}
	}
}

func TestManifestClone(t *testing.T) {
	m := Manifest{Name: "ledger", Dependencies: []string{"auth"}}
	clone := m.Clone()
	clone.Dependencies[0] = "billing"
	if m.Dependencies[0] != "auth" {
		t.Fatalf("clone shares dependencies")
	}
	if !m.DependsOn("auth") || m.DependsOn("billing") {
		t.Fatalf("unexpected DependsOn results for %+v", m)
	}
}

package ai

import (
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "fenced json block",
			input: "Here is the plan:\n```json\n{\"intent\": \"qa\"}\n```\nDone.",
			want:  `{"intent": "qa"}`,
		},
		{
			name:  "fenced block without language tag",
			input: "```\n{\"intent\": \"browse\"}\n```",
			want:  `{"intent": "browse"}`,
		},
		{
			name:  "bare object with surrounding prose",
			input: `The answer is {"a": 1} as requested.`,
			want:  `{"a": 1}`,
		},
		{
			name:  "bare array",
			input: `Results: [1, 2, 3]`,
			want:  `[1, 2, 3]`,
		},
		{
			name:  "plain json untouched",
			input: `  {"x": true}  `,
			want:  `{"x": true}`,
		},
		{
			name:  "no json returns trimmed input",
			input: "  just some prose  ",
			want:  "just some prose",
		},
		{
			name:  "fenced json preferred over outer braces",
			input: "{\"ignore\": 1}\n```json\n{\"keep\": 2}\n```",
			want:  `{"keep": 2}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.input)
			if got != tt.want {
				t.Fatalf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidJSON(t *testing.T) {
	if !IsValidJSON(`{"a": 1}`) {
		t.Fatal("expected valid")
	}
	if IsValidJSON(`{a: 1}`) {
		t.Fatal("expected invalid")
	}
}

func TestUnmarshalFlexible(t *testing.T) {
	type target struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "standard json", input: `{"name": "test"}`, want: "test"},
		{name: "double encoded", input: `"{\"name\": \"wrapped\"}"`, want: "wrapped"},
		{name: "malformed repaired", input: `{name: "fixed"}`, want: "fixed"},
		{name: "duplicate leading brace", input: `{{"name": "dup"}`, want: "dup"},
		{name: "trailing comma", input: `{"name": "comma",}`, want: "comma"},
		{name: "unrecoverable", input: `not json at all :::`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out target
			err := UnmarshalFlexible(tt.input, &out)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Name != tt.want {
				t.Fatalf("got %q, want %q", out.Name, tt.want)
			}
		})
	}
}

func TestGenerateSchemaJSON(t *testing.T) {
	type sample struct {
		Intent string `json:"intent"`
		Query  string `json:"query"`
	}
	out, err := GenerateSchemaJSON(sample{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty schema")
	}
	for _, field := range []string{"intent", "query"} {
		if !strings.Contains(out, `"`+field+`"`) {
			t.Fatalf("schema missing field %q: %s", field, out)
		}
	}
}

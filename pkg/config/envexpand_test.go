package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution with {{.VAR}}",
			input: "api_key: {{.API_KEY}}",
			env:   map[string]string{"API_KEY": "secret123"},
			want:  "api_key: secret123",
		},
		{
			name:  "literal ${VAR} is not expanded",
			input: "pattern: ${USER_ID}",
			env:   map[string]string{"USER_ID": "123"},
			want:  "pattern: ${USER_ID}",
		},
		{
			name:  "literal $VAR in a regex is not expanded",
			input: "regex: ^secret.*$",
			want:  "regex: ^secret.*$",
		},
		{
			name:  "multiple substitutions in one line",
			input: "url: {{.PROTOCOL}}://{{.HOST}}:{{.PORT}}",
			env:   map[string]string{"PROTOCOL": "https", "HOST": "example.com", "PORT": "443"},
			want:  "url: https://example.com:443",
		},
		{
			name:  "missing variable expands to empty",
			input: "endpoint: {{.MISSING_VAR}}",
			want:  "endpoint: ",
		},
		{
			name:  "no substitution when no variables present",
			input: "static: value",
			env:   map[string]string{"UNUSED": "value"},
			want:  "static: value",
		},
		{
			name:  "variables inside a nested YAML structure",
			input: "config:\n  host: {{.HOST}}\n  port: {{.PORT}}",
			env:   map[string]string{"HOST": "localhost", "PORT": "5432"},
			want:  "config:\n  host: localhost\n  port: 5432",
		},
		{
			name:  "special characters in an expanded value are preserved",
			input: "password: {{.PASSWORD}}",
			env:   map[string]string{"PASSWORD": "p@ssw0rd!#$%"},
			want:  "password: p@ssw0rd!#$%",
		},
		{
			name:  "literal dollar sign outside a template is preserved",
			input: "password: p@ss$word",
			want:  "password: p@ss$word",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.input))))
		})
	}
}

func TestExpandEnvWithEmptyInput(t *testing.T) {
	assert.Equal(t, "", string(ExpandEnv([]byte(""))))
}

// ExpandEnv only substitutes {{.VAR}}; a literal \n stays a literal
// backslash-n, never a newline.
func TestExpandEnvPreservesLiteralBackslashN(t *testing.T) {
	t.Setenv("TEST_PATH", "/usr/bin")
	result := ExpandEnv([]byte(`path: {{.TEST_PATH}}\nother: value`))
	assert.Contains(t, string(result), `/usr/bin\nother: value`)
}

func TestExpandEnvThreadSafety(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	input := []byte("key: {{.TEST_VAR}}")

	const goroutines = 50
	results := make([]string, goroutines)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = string(ExpandEnv(input))
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "key: value", r)
	}
}

// Malformed template syntax is passed through unchanged rather than causing
// a panic or a swallowed error, so the YAML parser sees the original bytes
// and can report its own, clearer error.
func TestExpandEnvMalformedTemplatePassesThrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed template", "api_key: {{.API_KEY"},
		{"missing one closing brace", "api_key: {{.API_KEY}"},
		{"variable without leading dot", "api_key: {{API_KEY}}"},
		{"unconfigured pipeline function", `api_key: {{.API_KEY | upper}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("API_KEY", "should-not-appear")
			result := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.input, string(result))
			assert.NotContains(t, string(result), "should-not-appear")
		})
	}
}

// When ExpandEnv falls back to the original bytes on a malformed template,
// the YAML parser still needs to handle (or cleanly reject) what comes
// through.
func TestExpandEnvPassThroughToYAMLParser(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectYAMLErr bool
	}{
		{
			name:          "valid YAML without templates",
			input:         "host: localhost\nport: 8080\n",
			expectYAMLErr: false,
		},
		{
			name:          "malformed template treated as a string literal",
			input:         "host: localhost\napi_key: \"{{.API_KEY\"\nport: 8080\n",
			expectYAMLErr: false,
		},
		{
			name:          "malformed template plus genuinely invalid YAML",
			input:         "host: localhost\napi_key: {{.API_KEY\n  invalid: indentation\nport: 8080\n",
			expectYAMLErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result map[string]any
			err := yaml.Unmarshal(ExpandEnv([]byte(tt.input)), &result)
			if tt.expectYAMLErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, result)
			}
		})
	}
}

// ExpandEnv must return the original bytes unchanged when the template
// fails to parse or execute.
func TestExpandEnvReturnsOriginalBytesOnError(t *testing.T) {
	input := []byte("key: {{.VAR")
	result := ExpandEnv(input)
	assert.Equal(t, input, result)
}

package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands {{.VAR}} placeholders in YAML content against the
// process environment, using text/template rather than shell-style
// ${VAR}/$VAR substitution so a regex literal like `^secret.*$` or a
// bracketed reference that happens to look like a shell variable never
// collides with env expansion. Missing variables expand to the empty
// string; validation catches required fields left blank.
//
// On template parse or execution failure, the original bytes are returned
// unchanged so the YAML parser can produce a clearer error than a
// swallowed template failure would.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap()); err != nil {
		return data
	}
	return buf.Bytes()
}

// envMap snapshots os.Environ() into a map so text/template's .VAR lookup
// (field/map access) can resolve it; missing keys render as empty via
// Option("missingkey=zero").
func envMap() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatJS   Format = "js"
)

const moduleHeader = "/** @type {import('semantic-release').GlobalConfig} */\n"

// ParseFormat accepts a format name as given on the command line or in a
// query string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "js", "mjs", "module":
		return FormatJS, nil
	}
	return "", fmt.Errorf("unknown format %q (want json, yaml or js)", s)
}

// FormatFromPath picks the format from a file name the orchestrator would
// look for.
func FormatFromPath(path string) (Format, error) {
	base := strings.ToLower(filepath.Base(path))
	switch ext := filepath.Ext(base); ext {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".js", ".mjs", ".cjs":
		return FormatJS, nil
	}
	if base == ".releaserc" {
		// .releaserc may hold JSON or YAML; YAML accepts both.
		return FormatYAML, nil
	}
	return "", fmt.Errorf("cannot infer format of %s", path)
}

// FileName is the conventional config file name for a format.
func (f Format) FileName() string {
	switch f {
	case FormatYAML:
		return ".releaserc.yaml"
	case FormatJS:
		return "release.config.js"
	}
	return ".releaserc.json"
}

func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatJS:
		return "text/javascript"
	}
	return "application/json"
}

// Encode renders a serialized form. Output is byte-for-byte deterministic.
func Encode(form SerializedForm, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		body, err := encodeJSON(form)
		if err != nil {
			return nil, err
		}
		return append(body, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]interface{}(form)); err != nil {
			return nil, &SerializationError{Path: "descriptor", Err: err}
		}
		if err := enc.Close(); err != nil {
			return nil, &SerializationError{Path: "descriptor", Err: err}
		}
		return buf.Bytes(), nil
	case FormatJS:
		body, err := encodeJSON(form)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		buf.WriteString(moduleHeader)
		buf.WriteString("export default ")
		buf.Write(body)
		buf.WriteString(";\n")
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func encodeJSON(form SerializedForm) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}(form)); err != nil {
		return nil, &SerializationError{Path: "descriptor", Err: err}
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

// Parse decodes a descriptor. It does not validate. For FormatJS the exported
// object literal is read as JSON5, so hand-written configs with bare keys and
// trailing commas load; computed values are not evaluated.
func Parse(data []byte, format Format) (models.Descriptor, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.Descriptor{}, fmt.Errorf("descriptor: payload is empty")
	}
	var d models.Descriptor
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &d); err != nil {
			return models.Descriptor{}, fmt.Errorf("descriptor: decode json: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &d); err != nil {
			return models.Descriptor{}, fmt.Errorf("descriptor: decode yaml: %w", err)
		}
	case FormatJS:
		body, err := moduleBody(data)
		if err != nil {
			return models.Descriptor{}, err
		}
		var literal interface{}
		if err := json5.Unmarshal(body, &literal); err != nil {
			return models.Descriptor{}, fmt.Errorf("descriptor: decode module: %w", err)
		}
		// re-encode so Stage's JSON codec sees the literal
		normalized, err := json.Marshal(literal)
		if err != nil {
			return models.Descriptor{}, fmt.Errorf("descriptor: decode module: %w", err)
		}
		if err := json.Unmarshal(normalized, &d); err != nil {
			return models.Descriptor{}, fmt.Errorf("descriptor: decode module: %w", err)
		}
	default:
		return models.Descriptor{}, fmt.Errorf("descriptor: unknown format %q", format)
	}
	return d, nil
}

// LoadFile reads and validates a descriptor file. The format comes from the
// file name.
func LoadFile(path string) (models.Descriptor, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return models.Descriptor{}, fmt.Errorf("descriptor: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return models.Descriptor{}, fmt.Errorf("descriptor: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.Descriptor{}, fmt.Errorf("descriptor: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Descriptor{}, fmt.Errorf("descriptor: read %s: %w", path, err)
	}
	d, err := Parse(data, format)
	if err != nil {
		return models.Descriptor{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(&d); err != nil {
		return models.Descriptor{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func moduleBody(data []byte) ([]byte, error) {
	rest := bytes.TrimSpace(data)
	for {
		switch {
		case bytes.HasPrefix(rest, []byte("/*")):
			end := bytes.Index(rest, []byte("*/"))
			if end < 0 {
				return nil, fmt.Errorf("descriptor: unterminated comment")
			}
			rest = bytes.TrimSpace(rest[end+2:])
			continue
		case bytes.HasPrefix(rest, []byte("//")):
			nl := bytes.IndexByte(rest, '\n')
			if nl < 0 {
				return nil, fmt.Errorf("descriptor: module has no body")
			}
			rest = bytes.TrimSpace(rest[nl+1:])
			continue
		}
		break
	}

	switch {
	case bytes.HasPrefix(rest, []byte("export default")):
		rest = rest[len("export default"):]
	case bytes.HasPrefix(rest, []byte("module.exports")):
		rest = bytes.TrimSpace(rest[len("module.exports"):])
		if !bytes.HasPrefix(rest, []byte("=")) {
			return nil, fmt.Errorf("descriptor: expected module.exports assignment")
		}
		rest = rest[1:]
	default:
		return nil, fmt.Errorf("descriptor: expected export default or module.exports")
	}
	rest = bytes.TrimSuffix(bytes.TrimSpace(rest), []byte(";"))
	return bytes.TrimSpace(rest), nil
}

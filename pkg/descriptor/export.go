package descriptor

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

// SerializedForm is the nested value handed to the orchestrator: only nil,
// bool, string, float64, int64, []interface{} and map[string]interface{}
// appear in it.
type SerializedForm map[string]interface{}

var (
	ErrUnsupportedType = errors.New("unsupported value type")
	ErrNonFiniteNumber = errors.New("non-finite number")
)

// Export converts d into its serialized form. Export does not validate; call
// Validate first.
func Export(d *models.Descriptor) (SerializedForm, error) {
	if d == nil {
		return nil, &SerializationError{Path: "descriptor", Err: errors.New("descriptor is nil")}
	}
	branches := make([]interface{}, len(d.Branches))
	for i, b := range d.Branches {
		branches[i] = b
	}
	plugins := make([]interface{}, len(d.Plugins))
	for i, stage := range d.Plugins {
		if !stage.HasOptions() {
			plugins[i] = stage.Name
			continue
		}
		path := fmt.Sprintf("plugins[%d].options", i)
		opts, err := normalize(path, reflect.ValueOf(map[string]interface{}(stage.Options)))
		if err != nil {
			return nil, err
		}
		plugins[i] = []interface{}{stage.Name, opts}
	}

	form := SerializedForm{
		"branches": branches,
		"plugins":  plugins,
	}
	if d.TagFormat != "" {
		form["tagFormat"] = d.TagFormat
	}
	if d.RepositoryURL != "" {
		form["repositoryUrl"] = d.RepositoryURL
	}
	return form, nil
}

func normalize(path string, v reflect.Value) (interface{}, error) {
	if !v.IsValid() {
		return nil, nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return normalize(path, v.Elem())
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return float64(u), nil
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &SerializationError{Path: path, Err: ErrNonFiniteNumber}
		}
		return f, nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return []interface{}{}, nil
		}
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, err := normalize(fmt.Sprintf("%s[%d]", path, i), v.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, &SerializationError{Path: path, Err: fmt.Errorf("%w: map key %s", ErrUnsupportedType, v.Type().Key())}
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			item, err := normalize(path+"."+k, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())))
			if err != nil {
				return nil, err
			}
			out[k] = item
		}
		return out, nil
	default:
		return nil, &SerializationError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())}
	}
}

package codec

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// DecodeLoose decodes the payload into the struct pointed to by v like Decode,
// but a field of the wrong type no longer spoils the rest of the payload.
// String fields accept any scalar in its text form, bool fields take the
// value's truthiness and any other mismatch leaves the field at its zero
// value. It still fails when the payload is not an object.
func (f *Frame) DecodeLoose(v any) error {
	err := f.Decode(v)
	if err == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return err
	}

	var fields map[string]any
	if f.decode(f.payload, &fields) != nil {
		return err
	}

	elem := rv.Elem()
	elem.Set(reflect.Zero(elem.Type()))

	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := fieldName(sf)
		if name == "-" {
			continue
		}
		raw, ok := fields[name]
		if !ok || raw == nil {
			continue
		}
		coerce(elem.Field(i), raw)
	}
	return nil
}

// fieldName is the wire name of sf; both codecs read the json tag.
func fieldName(sf reflect.StructField) string {
	tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if tag == "" {
		return sf.Name
	}
	return tag
}

func coerce(dst reflect.Value, raw any) {
	switch dst.Kind() {
	case reflect.String:
		if s, ok := scalarText(raw); ok {
			dst.SetString(s)
		}
	case reflect.Bool:
		dst.SetBool(truthy(raw))
	case reflect.Interface:
		if src := reflect.ValueOf(raw); src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
		}
	}
}

func scalarText(raw any) (string, bool) {
	switch x := raw.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	}
	return "", false
}

// truthy follows browser semantics: zero, NaN and "" are false, objects and
// arrays are true.
func truthy(raw any) bool {
	if b, ok := raw.(bool); ok {
		return b
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.String:
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0 && !math.IsNaN(rv.Float())
	}
	return true
}

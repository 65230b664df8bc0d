package bencode

import (
	"reflect"
	"strings"
)

// Unmarshal decodes data and binds it into target, a pointer to a struct,
// map, slice or scalar. It is a convenience wrapper around Decode+Bind.
func Unmarshal(data []byte, target any) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	return Bind(v, target)
}

// Bind maps an already-decoded Value onto target, a pointer to a struct,
// map, slice or scalar. Struct fields may carry a `bencode:"name"` tag to
// bind against a differently-named dictionary key (e.g. `piece length`);
// an absent tag falls back to the Go field name. A dictionary key with no
// matching field, or a struct field with no matching key, is left alone --
// unknown entries are ignored, and absent fields are simply never set
// (so a pointer field stays nil rather than being reported as a zero
// value).
func Bind(v *Value, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return unexpected("Bind target must be a non-nil pointer")
	}
	return bindValue(v, rv.Elem())
}

func bindValue(v *Value, rv reflect.Value) error {
	if v == nil {
		return nil
	}
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return bindValue(v, rv.Elem())
	case reflect.Struct:
		if v.Kind != KindDict {
			return unexpected("expected dictionary for struct %s, got kind %d", rv.Type(), v.Kind)
		}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue // unexported
			}
			tag := field.Tag.Get("bencode")
			if tag == "-" {
				continue
			}
			name, _ := parseTag(tag, field.Name)
			val, ok := v.Dict[name]
			if !ok {
				continue // absent: leave field untouched
			}
			if err := bindValue(val, rv.Field(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.String:
		if v.Kind != KindBytes {
			return unexpected("expected byte string for string field, got kind %d", v.Kind)
		}
		rv.SetString(string(v.Bytes))
		return nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if v.Kind != KindBytes {
				return unexpected("expected byte string for []byte field, got kind %d", v.Kind)
			}
			b := make([]byte, len(v.Bytes))
			copy(b, v.Bytes)
			rv.SetBytes(b)
			return nil
		}
		if v.Kind != KindList {
			return unexpected("expected list for slice field, got kind %d", v.Kind)
		}
		sl := reflect.MakeSlice(rv.Type(), len(v.List), len(v.List))
		for i, item := range v.List {
			if err := bindValue(item, sl.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(sl)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Kind != KindInt {
			return unexpected("expected integer, got kind %d", v.Kind)
		}
		rv.SetInt(v.Int)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Kind != KindInt {
			return unexpected("expected integer, got kind %d", v.Kind)
		}
		if v.Int < 0 {
			return unexpected("negative integer %d for unsigned field", v.Int)
		}
		rv.SetUint(uint64(v.Int))
		return nil
	case reflect.Map:
		if v.Kind != KindDict {
			return unexpected("expected dictionary for map field, got kind %d", v.Kind)
		}
		m := reflect.MakeMapWithSize(rv.Type(), len(v.Dict))
		for k, val := range v.Dict {
			ev := reflect.New(rv.Type().Elem()).Elem()
			if err := bindValue(val, ev); err != nil {
				return err
			}
			m.SetMapIndex(reflect.ValueOf(k), ev)
		}
		rv.Set(m)
		return nil
	case reflect.Interface:
		rv.Set(reflect.ValueOf(v))
		return nil
	default:
		return unexpected("unsupported bind target kind %s", rv.Kind())
	}
}

// Marshal builds a Value tree from src, the inverse of Bind. It is used to
// construct small ad-hoc bencoded payloads (extension handshakes, metadata
// requests) from plain Go structs and maps.
func Marshal(src any) (*Value, error) {
	return marshalValue(reflect.ValueOf(src))
}

func marshalValue(rv reflect.Value) (*Value, error) {
	if rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, nil
		}
		return marshalValue(rv.Elem())
	}
	switch rv.Kind() {
	case reflect.Struct:
		dict := make(map[string]*Value)
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue
			}
			tag := field.Tag.Get("bencode")
			if tag == "-" {
				continue
			}
			name, _ := parseTag(tag, field.Name)
			fv := rv.Field(i)
			if (fv.Kind() == reflect.Ptr || fv.Kind() == reflect.Interface) && fv.IsNil() {
				continue
			}
			val, err := marshalValue(fv)
			if err != nil {
				return nil, err
			}
			if val == nil {
				continue
			}
			dict[name] = val
		}
		return NewDict(dict), nil
	case reflect.String:
		return NewString(rv.String()), nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return NewBytes(b), nil
		}
		items := make([]*Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := marshalValue(rv.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return NewList(items), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewInt(int64(rv.Uint())), nil
	case reflect.Map:
		dict := make(map[string]*Value)
		for _, key := range rv.MapKeys() {
			v, err := marshalValue(rv.MapIndex(key))
			if err != nil {
				return nil, err
			}
			dict[key.String()] = v
		}
		return NewDict(dict), nil
	default:
		return nil, unexpected("unsupported marshal source kind %s", rv.Kind())
	}
}

// parseTag splits a `bencode:"name,bytes"` tag into its key name and
// whether the ",bytes" modifier (raw passthrough, for documentation
// parity with non-[]byte fields) was present. An empty name falls back to
// fallback (the Go field name).
func parseTag(tag, fallback string) (name string, rawBytes bool) {
	if tag == "" {
		return fallback, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = fallback
	}
	for _, p := range parts[1:] {
		if p == "bytes" {
			rawBytes = true
		}
	}
	return name, rawBytes
}

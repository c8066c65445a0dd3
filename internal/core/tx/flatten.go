package tx

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// flattenField holds pre-computed metadata for a single struct field.
type flattenField struct {
	index     int
	name      string
	omitempty bool
	isAmount  bool
	base10    bool // render a uint64 as a decimal string
}

type flattenInfo struct {
	fields []flattenField
}

var flattenCache sync.Map // map[reflect.Type]*flattenInfo

// parseXRPLTag parses an xrpl struct tag of the form
// "FieldName,opt1,opt2" with options omitempty, amount and base10.
func parseXRPLTag(tag string) (f flattenField, skip bool) {
	if tag == "" || tag == "-" {
		return f, true
	}
	parts := strings.Split(tag, ",")
	f.name = parts[0]
	for _, opt := range parts[1:] {
		switch opt {
		case "omitempty":
			f.omitempty = true
		case "amount":
			f.isAmount = true
		case "base10":
			f.base10 = true
		}
	}
	return f, false
}

func getFlattenInfo(t reflect.Type) *flattenInfo {
	if cached, ok := flattenCache.Load(t); ok {
		return cached.(*flattenInfo)
	}

	info := &flattenInfo{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous || !field.IsExported() {
			continue
		}
		f, skip := parseXRPLTag(field.Tag.Get("xrpl"))
		if skip {
			continue
		}
		f.index = i
		info.fields = append(info.fields, f)
	}

	flattenCache.Store(t, info)
	return info
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.String:
		return v.String() == ""
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Struct:
		if a, ok := v.Interface().(Amount); ok {
			return a.IsZero()
		}
	}
	return false
}

// ReflectFlatten builds the codec map for a variant from Common.ToMap and
// the xrpl tags on its own fields.
func ReflectFlatten(t Transaction) (map[string]any, error) {
	m := t.GetCommon().ToMap()

	v := reflect.ValueOf(t)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	for _, f := range getFlattenInfo(v.Type()).fields {
		val := v.Field(f.index)
		if f.omitempty && isEmptyValue(val) {
			continue
		}
		if val.Kind() == reflect.Ptr {
			if val.IsNil() {
				continue
			}
			val = val.Elem()
		}

		switch {
		case f.isAmount:
			m[f.name] = val.Interface().(Amount).Flatten()
		case f.base10:
			m[f.name] = strconv.FormatUint(val.Uint(), 10)
		default:
			m[f.name] = val.Interface()
		}
	}

	return m, nil
}

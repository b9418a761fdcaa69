package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns extracts all column names from struct "db" tags,
// following embedded structs. Call it once at initialization time.
//
// Usage:
//
//	columns := ExtractDBColumns[checkrequest.Request]()
//	// Returns: ["id", "provider_id", "payment_concept_id", "amount", ...]
func ExtractDBColumns[T any]() []string {
	var zero T
	return extractColumnsFromType(reflect.TypeOf(zero))
}

func extractColumnsFromType(t reflect.Type) []string {
	meta := getOrCreateTypeMetadata(t)

	cols := make([]string, 0, len(meta.fields))
	for _, fi := range meta.fields {
		cols = append(cols, fi.dbTag)
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	for _, embIdx := range meta.embeddedIndices {
		cols = append(cols, extractColumnsFromType(t.Field(embIdx).Type)...)
	}
	return cols
}

// fieldInfo contains pre-computed metadata about a struct field.
type fieldInfo struct {
	index int
	dbTag string
}

// typeMetadata contains cached reflection metadata for a type.
type typeMetadata struct {
	fields          []fieldInfo
	embeddedIndices []int
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func getOrCreateTypeMetadata(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() != reflect.Struct {
		typeCache.Store(t, meta)
		return meta
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			meta.embeddedIndices = append(meta.embeddedIndices, i)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to a column map using "db" tags.
// Only columns listed in keep are returned; a nil keep returns every column.
func StructToMap(v any, keep ...string) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	all := make(map[string]any)
	collect(rv, all)

	if len(keep) == 0 {
		return all
	}
	res := make(map[string]any, len(keep))
	for _, col := range keep {
		if val, ok := all[col]; ok {
			res[col] = val
		}
	}
	return res
}

func collect(rv reflect.Value, into map[string]any) {
	meta := getOrCreateTypeMetadata(rv.Type())
	for _, fi := range meta.fields {
		into[fi.dbTag] = rv.Field(fi.index).Interface()
	}
	for _, embIdx := range meta.embeddedIndices {
		f := rv.Field(embIdx)
		if f.Kind() == reflect.Ptr {
			if f.IsNil() {
				continue
			}
			f = f.Elem()
		}
		if f.Kind() == reflect.Struct {
			collect(f, into)
		}
	}
}

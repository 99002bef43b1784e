package query

import (
	"reflect"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldKind is the scalar type a filter value is coerced to.
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindInt
	KindFloat
	KindTime
	KindObjectID
	KindOther
)

// Field describes one filterable document path.
type Field struct {
	Path   string
	Kind   FieldKind
	Hidden bool
}

// Schema lists the document paths a query may reference. It is derived from
// the bson tags of a document type; fields tagged json:"-" are hidden and can
// be neither filtered, sorted nor projected.
type Schema struct {
	fields map[string]Field
	hidden []string
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	objectIDType = reflect.TypeOf(primitive.ObjectID{})
)

// SchemaFor builds the schema of T, which may be a struct or a pointer to one.
func SchemaFor[T any]() *Schema {
	return NewSchema(reflect.TypeOf((*T)(nil)).Elem())
}

// NewSchema builds the schema of t.
func NewSchema(t reflect.Type) *Schema {
	s := &Schema{fields: map[string]Field{}}
	s.walk(t, "", false, 0)
	return s
}

func (s *Schema) walk(t reflect.Type, prefix string, hidden bool, depth int) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || depth > 2 {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, inline := bsonName(sf)
		if name == "-" {
			continue
		}
		isHidden := hidden || sf.Tag.Get("json") == "-"
		if inline {
			s.walk(sf.Type, prefix, isHidden, depth)
			continue
		}
		path := prefix + name
		ft := sf.Type
		for ft.Kind() == reflect.Pointer || ft.Kind() == reflect.Slice || ft.Kind() == reflect.Array {
			ft = ft.Elem()
		}
		kind := kindOf(ft)
		s.fields[path] = Field{Path: path, Kind: kind, Hidden: isHidden}
		if isHidden && prefix == "" {
			s.hidden = append(s.hidden, path)
		}
		if kind == KindOther && ft.Kind() == reflect.Struct {
			s.walk(ft, path+".", isHidden, depth+1)
		}
	}
}

func bsonName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("bson")
	parts := strings.Split(tag, ",")
	inline := false
	for _, opt := range parts[1:] {
		if opt == "inline" {
			inline = true
		}
	}
	if sf.Anonymous && parts[0] == "" {
		inline = true
	}
	if parts[0] == "" {
		return strings.ToLower(sf.Name), inline
	}
	return parts[0], inline
}

func kindOf(t reflect.Type) FieldKind {
	switch {
	case t == timeType:
		return KindTime
	case t == objectIDType:
		return KindObjectID
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	default:
		return KindOther
	}
}

// Lookup returns the visible field at path.
func (s *Schema) Lookup(path string) (Field, bool) {
	f, ok := s.fields[path]
	if !ok || f.Hidden {
		return Field{}, false
	}
	return f, true
}

// HiddenProjection excludes every hidden field, or is nil when there are none.
func (s *Schema) HiddenProjection() bson.M {
	if len(s.hidden) == 0 {
		return nil
	}
	p := bson.M{}
	for _, h := range s.hidden {
		p[h] = 0
	}
	return p
}

// Hidden lists the top-level hidden paths.
func (s *Schema) Hidden() []string {
	return append([]string(nil), s.hidden...)
}

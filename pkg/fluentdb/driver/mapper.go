package driver

import (
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// ReflectMapper is the default EntityMapper. It maps row columns onto
// exported struct fields by `db` tag, falling back to the snake_case form
// of the field name.
//
// Example:
//
//	type User struct {
//		ID    int
//		Name  string
//		Image string `db:"image_url"`
//	}
type ReflectMapper struct{}

func (ReflectMapper) MapRow(row Row, dest any) error {
	rv := reflect.ValueOf(dest)
	if !rv.IsValid() || rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: destination is not a non-nil pointer", ErrMappingFailed)
	}

	v := rv.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("%w: destination is not a struct, got %s", ErrMappingFailed, v.Kind())
	}

	for i := 0; i < v.NumField(); i++ {
		f := v.Type().Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Tag.Get("db")
		if name == "-" {
			continue
		}

		if name == "" {
			name = ToSnakeCase(f.Name)
		}

		val, ok := row.Get(name)
		if !ok {
			return fmt.Errorf("%w: no column %q for field %s", ErrMappingFailed, name, f.Name)
		}

		if err := assign(v.Field(i), val); err != nil {
			return fmt.Errorf("%w: column %q: %v", ErrMappingFailed, name, err)
		}
	}

	return nil
}

func assign(field reflect.Value, val any) error {
	if val == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	if scanner, ok := field.Addr().Interface().(sql.Scanner); ok {
		return scanner.Scan(val)
	}

	rv := reflect.ValueOf(val)

	// Unwrap typed-nil pointers produced by null bindings round-tripping.
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}

		rv = rv.Elem()
	}

	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}

	if rv.Type().ConvertibleTo(field.Type()) && convertible(rv.Type(), field.Type()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}

	if b, ok := val.([]byte); ok && field.Kind() == reflect.String {
		field.SetString(string(b))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", val, field.Type())
}

// convertible guards against surprising conversions reflect would allow,
// such as int64 to string (which yields a rune, not a decimal string).
func convertible(from, to reflect.Type) bool {
	if to.Kind() == reflect.String && from.Kind() != reflect.String {
		return from == reflect.TypeOf([]byte(nil))
	}

	if from == reflect.TypeOf(time.Time{}) || to == reflect.TypeOf(time.Time{}) {
		return from == to
	}

	return true
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// ToSnakeCase converts a Go field name to its snake_case column form.
func ToSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")

	return strings.ToLower(snake)
}

// EntityValues extracts (column, value) pairs from a struct for generic
// inserts, using the same naming rules as MapRow. Columns are emitted in
// field declaration order.
func EntityValues(entity any) ([]string, []any, error) {
	rv := reflect.ValueOf(entity)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, nil, fmt.Errorf("%w: nil entity", ErrMappingFailed)
		}

		rv = rv.Elem()
	}

	if rv.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("%w: entity is not a struct, got %s", ErrMappingFailed, rv.Kind())
	}

	var (
		columns []string
		values  []any
	)

	for i := 0; i < rv.NumField(); i++ {
		f := rv.Type().Field(i)
		if !f.IsExported() {
			continue
		}

		name := f.Tag.Get("db")
		if name == "-" {
			continue
		}

		if name == "" {
			name = ToSnakeCase(f.Name)
		}

		columns = append(columns, name)
		values = append(values, rv.Field(i).Interface())
	}

	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("%w: entity has no mappable fields", ErrMappingFailed)
	}

	return columns, values, nil
}

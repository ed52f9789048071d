// Package wire translates JSON documents between the API's snake_case field
// names and the camelCase names the console uses in memory.
//
// Every entity has an explicit table of field pairs. Fields holding nested
// objects name the table that applies to them, so a document is translated
// without guessing from naming conventions. Unknown fields are an error.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Direction selects which way a document is translated.
type Direction int

const (
	// ToCamel translates wire documents into console documents.
	ToCamel Direction = iota
	// ToSnake translates console documents into wire documents.
	ToSnake
)

func (d Direction) String() string {
	if d == ToSnake {
		return "snake"
	}
	return "camel"
}

// ErrUnknownEntity is returned when no table is registered for an entity.
var ErrUnknownEntity = errors.New("unknown entity")

// ErrUnknownField is returned when a document holds a field its table lacks.
var ErrUnknownField = errors.New("unknown field")

// Field pairs a wire name with its console name. Nested names the table of
// the object (or array of objects) the field holds.
type Field struct {
	Snake  string
	Camel  string
	Nested string
}

// Table is the field mapping of one entity.
type Table struct {
	Entity  string
	Fields  []Field
	bySnake map[string]Field
	byCamel map[string]Field
}

func newTable(entity string, fields ...Field) *Table {
	t := &Table{
		Entity:  entity,
		Fields:  fields,
		bySnake: make(map[string]Field, len(fields)),
		byCamel: make(map[string]Field, len(fields)),
	}
	for _, f := range fields {
		if _, dup := t.bySnake[f.Snake]; dup {
			panic(fmt.Sprintf("wire: %s: duplicate field %q", entity, f.Snake))
		}
		if _, dup := t.byCamel[f.Camel]; dup {
			panic(fmt.Sprintf("wire: %s: duplicate field %q", entity, f.Camel))
		}
		t.bySnake[f.Snake] = f
		t.byCamel[f.Camel] = f
	}
	return t
}

// Camel returns the console name of a wire field.
func (t *Table) Camel(snake string) (string, bool) {
	f, ok := t.bySnake[snake]
	return f.Camel, ok
}

// Snake returns the wire name of a console field.
func (t *Table) Snake(camel string) (string, bool) {
	f, ok := t.byCamel[camel]
	return f.Snake, ok
}

func (t *Table) field(name string, dir Direction) (Field, bool) {
	if dir == ToSnake {
		f, ok := t.byCamel[name]
		return f, ok
	}
	f, ok := t.bySnake[name]
	return f, ok
}

const pagePrefix = "page:"

// PageOf names the results page of an entity, e.g. PageOf("disk").
func PageOf(entity string) string { return pagePrefix + entity }

// Lookup returns the table for an entity. Page names built by PageOf
// resolve to a table of items and next_page.
func Lookup(entity string) (*Table, bool) {
	if item, ok := strings.CutPrefix(entity, pagePrefix); ok {
		if _, ok := tables[item]; !ok {
			return nil, false
		}
		return newTable(entity,
			Field{Snake: "items", Camel: "items", Nested: item},
			Field{Snake: "next_page", Camel: "nextPage"},
		), true
	}
	t, ok := tables[entity]
	return t, ok
}

// Entities lists every registered entity, sorted.
func Entities() []string {
	out := make([]string, 0, len(tables))
	for name := range tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Convert translates a decoded JSON value (objects as map[string]any,
// arrays as []any) described by entity. The input is not modified.
func Convert(entity string, v any, dir Direction) (any, error) {
	t, ok := Lookup(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return convertValue(t, v, dir, entity)
}

func convertValue(t *Table, v any, dir Direction, path string) (any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			c, err := convertValue(t, item, dir, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			f, ok := t.field(k, dir)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, path, k)
			}
			name := f.Camel
			if dir == ToSnake {
				name = f.Snake
			}
			if f.Nested != "" && val != nil {
				nt, ok := Lookup(f.Nested)
				if !ok {
					return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, f.Nested)
				}
				c, err := convertValue(nt, val, dir, path+"."+name)
				if err != nil {
					return nil, err
				}
				val = c
			}
			out[name] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("wire: %s: expected object or array, got %T", path, v)
	}
}

// ConvertJSON translates an encoded JSON document. Numbers are carried
// through unchanged.
func ConvertJSON(entity string, data []byte, dir Direction) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", entity, err)
	}
	out, err := Convert(entity, v, dir)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

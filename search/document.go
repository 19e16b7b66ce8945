package search

import (
	"encoding/json"
	"strings"
)

// Document is a schema-less search document: field name to value.
type Document map[string]Value

// Get returns the value of field and whether it is present and not null.
func (d Document) Get(field string) (Value, bool) {
	v, ok := d[field]

	return v, ok && !v.IsNull()
}

// withoutAnnotations drops the @search.* and @odata.* members the service
// adds to query results.
func (d Document) withoutAnnotations() Document {
	for k := range d {
		if isAnnotation(k) {
			delete(d, k)
		}
	}

	return d
}

// Index is an index definition. Members are kept as raw JSON so that every
// part of the definition (fields, analyzers, scoring profiles, suggesters,
// vector search) is copied as-is.
type Index map[string]json.RawMessage

// Name returns the index name.
func (ix Index) Name() string {
	var name string
	_ = json.Unmarshal(ix["name"], &name)

	return name
}

// FieldCount returns the number of top-level fields.
func (ix Index) FieldCount() int {
	var fields []json.RawMessage
	_ = json.Unmarshal(ix["fields"], &fields)

	return len(fields)
}

// withoutAnnotations returns a copy without the read-only members of a
// definition read from a service: @odata.context and @odata.etag.
func (ix Index) withoutAnnotations() Index {
	rv := make(Index, len(ix))
	for k, v := range ix {
		if !isAnnotation(k) {
			rv[k] = v
		}
	}

	return rv
}

func isAnnotation(name string) bool {
	return strings.HasPrefix(name, "@search.") || strings.HasPrefix(name, "@odata.")
}

package search

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/percona/search-clone/errors"
)

// Kind is the type of a [Value].
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindGeoPoint
	KindCollection
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindGeoPoint:
		return "geopoint"
	case KindCollection:
		return "collection"
	case KindObject:
		return "object"
	}

	return "unknown"
}

// GeoPoint is an Edm.GeographyPoint in WGS 84.
type GeoPoint struct {
	Longitude float64
	Latitude  float64
}

// Value is a field value of a document. The zero Value is null.
//
// Numbers keep their JSON text so that integers beyond float64 precision and
// decimal values round-trip unchanged.
type Value struct {
	kind Kind
	str  string
	num  json.Number
	b    bool
	geo  GeoPoint
	list []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a number value. n must be a valid JSON number.
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// Int returns an integer number value.
func Int(i int64) Value { return Number(json.Number(strconv.FormatInt(i, 10))) }

// Float returns a floating point number value.
func Float(f float64) Value { return Number(json.Number(strconv.FormatFloat(f, 'g', -1, 64))) }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Geo returns a geography point value.
func Geo(lon, lat float64) Value {
	return Value{kind: KindGeoPoint, geo: GeoPoint{Longitude: lon, Latitude: lat}}
}

// Collection returns a collection value.
func Collection(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}

	return Value{kind: KindCollection, list: items}
}

// Object returns a complex field value.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}

	return Value{kind: KindObject, obj: fields}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string and true if v is a string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the number and true if v is a number.
func (v Value) Num() (json.Number, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the bool and true if v is a bool.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// GeoPoint returns the point and true if v is a geography point.
func (v Value) GeoPoint() (GeoPoint, bool) { return v.geo, v.kind == KindGeoPoint }

// Items returns the elements of a collection, nil otherwise.
func (v Value) Items() []Value { return v.list }

// Fields returns the members of a complex value, nil otherwise.
func (v Value) Fields() map[string]Value { return v.obj }

// String renders v for logs.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindGeoPoint:
		return "POINT(" + strconv.FormatFloat(v.geo.Longitude, 'g', -1, 64) + " " +
			strconv.FormatFloat(v.geo.Latitude, 'g', -1, 64) + ")"
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "<" + v.kind.String() + ">"
	}

	return string(data)
}

// ODataLiteral returns v as a literal usable in an OData $filter expression.
// Only strings, numbers and bools have a literal form.
func (v Value) ODataLiteral() (string, error) {
	switch v.kind {
	case KindString:
		return "'" + strings.ReplaceAll(v.str, "'", "''") + "'", nil
	case KindNumber:
		return v.num.String(), nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	}

	return "", errors.Errorf("%s value has no filter literal", v.kind)
}

// Compare orders two values of the same kind. Numbers compare numerically,
// strings ordinally and false sorts before true.
func Compare(a, b Value) (int, error) {
	if a.kind != b.kind {
		return 0, errors.Errorf("cannot compare %s with %s", a.kind, b.kind)
	}

	switch a.kind {
	case KindString:
		return strings.Compare(a.str, b.str), nil

	case KindNumber:
		x, _, err := big.ParseFloat(a.num.String(), 10, 256, big.ToNearestEven)
		if err != nil {
			return 0, errors.Wrapf(err, "parse number %q", a.num)
		}

		y, _, err := big.ParseFloat(b.num.String(), 10, 256, big.ToNearestEven)
		if err != nil {
			return 0, errors.Wrapf(err, "parse number %q", b.num)
		}

		return x.Cmp(y), nil

	case KindBool:
		switch {
		case a.b == b.b:
			return 0, nil
		case !a.b:
			return -1, nil
		default:
			return 1, nil
		}
	}

	return 0, errors.Errorf("%s values are not ordered", a.kind)
}

type geoJSON struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str) //nolint:wrapcheck
	case KindNumber:
		return json.Marshal(v.num) //nolint:wrapcheck
	case KindBool:
		return json.Marshal(v.b) //nolint:wrapcheck
	case KindGeoPoint:
		return json.Marshal(geoJSON{ //nolint:wrapcheck
			Type:        "Point",
			Coordinates: [2]float64{v.geo.Longitude, v.geo.Latitude},
		})
	case KindCollection:
		return json.Marshal(v.list) //nolint:wrapcheck
	case KindObject:
		return json.Marshal(v.obj) //nolint:wrapcheck
	}

	return nil, errors.Errorf("unknown value kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any

	err := dec.Decode(&raw)
	if err != nil {
		return errors.Wrap(err, "decode value")
	}

	*v = fromAny(raw)

	return nil
}

func fromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(x)
	case json.Number:
		return Number(x)
	case bool:
		return Bool(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = fromAny(item)
		}

		return Collection(items...)
	case map[string]any:
		if lon, lat, ok := asGeoPoint(x); ok {
			return Geo(lon, lat)
		}

		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fields[k] = fromAny(item)
		}

		return Object(fields)
	}

	return Null()
}

// asGeoPoint recognizes the GeoJSON point form the service returns for
// Edm.GeographyPoint fields. The optional crs member is dropped.
func asGeoPoint(m map[string]any) (float64, float64, bool) {
	if len(m) > 3 || m["type"] != "Point" {
		return 0, 0, false
	}

	for k := range m {
		if k != "type" && k != "coordinates" && k != "crs" {
			return 0, 0, false
		}
	}

	coords, ok := m["coordinates"].([]any)
	if !ok || len(coords) != 2 {
		return 0, 0, false
	}

	var xy [2]float64

	for i, c := range coords {
		n, ok := c.(json.Number)
		if !ok {
			return 0, 0, false
		}

		f, err := n.Float64()
		if err != nil {
			return 0, 0, false
		}

		xy[i] = f
	}

	return xy[0], xy[1], true
}

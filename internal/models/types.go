package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a single answer in a response payload. The zero Value is null.
//
// Numbers decoded from JSON keep their literal text and are written back
// unchanged, so integers beyond float64 precision or range survive a
// read-merge-write of the payload.
type Value struct {
	kind Kind
	b    bool
	n    float64
	lit  string
	s    string
	list []Value
	obj  map[string]Value
}

func Null() Value               { return Value{} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func List(items ...Value) Value { return Value{kind: KindList, list: append([]Value(nil), items...)} }

func Object(m map[string]Value) Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return Value{kind: KindObject, obj: out}
}

// NumberLiteral returns a number holding the JSON number text lit as is.
func NumberLiteral(lit json.Number) (Value, error) {
	if len(lit) == 0 || !json.Valid([]byte(lit)) || (lit[0] != '-' && (lit[0] < '0' || lit[0] > '9')) {
		return Value{}, fmt.Errorf("number %q: invalid JSON number", string(lit))
	}
	// out-of-range literals parse to ±Inf and keep their text
	f, _ := strconv.ParseFloat(string(lit), 64)
	return Value{kind: KindNumber, n: f, lit: string(lit)}, nil
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool)      { return v.b, v.kind == KindBool }
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }
func (v Value) AsString() (string, bool)  { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)   { return v.list, v.kind == KindList }
func (v Value) AsObject() (Payload, bool) { return Payload(v.obj), v.kind == KindObject }
func (v Value) IsNull() bool              { return v.kind == KindNull }

// Equal reports deep equality of two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return numbersEqual(v, o)
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return Payload(v.obj).Equal(Payload(o.obj))
	}
	return false
}

func numbersEqual(a, b Value) bool {
	if a.lit != "" && b.lit != "" {
		if a.lit == b.lit {
			return true
		}
		prec := uint(4*max(len(a.lit), len(b.lit)) + 64)
		x, okx := new(big.Float).SetPrec(prec).SetString(a.lit)
		y, oky := new(big.Float).SetPrec(prec).SetString(b.lit)
		if okx && oky {
			return x.Cmp(y) == 0
		}
	}
	return a.n == b.n
}

// Literal returns the JSON text of a number, formatting it when the number
// was not decoded from JSON.
func (v Value) Literal() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	if v.lit != "" {
		return v.lit, true
	}
	b, err := json.Marshal(v.n)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Any converts the value into plain Go types as produced by encoding/json.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, it := range v.list {
			out[i] = it.Any()
		}
		return out
	case KindObject:
		return Payload(v.obj).Any()
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if v.lit != "" {
			return []byte(v.lit), nil
		}
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	}
	return nil, fmt.Errorf("marshal value: unknown kind %d", v.kind)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// FromAny converts decoded JSON (or simple Go values) into a Value.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		return NumberLiteral(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Value{}, err
			}
			obj[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	}
	return Value{}, fmt.Errorf("unsupported value type %T", x)
}

// Payload maps question fields to answers.
type Payload map[string]Value

var ErrNotObject = errors.New("payload is not a JSON object")

// DecodePayload parses a JSON object into a Payload.
func DecodePayload(data []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// Clone copies the top level of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the field names in lexical order.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Payload) Equal(o Payload) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

func (p Payload) Any() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Any()
	}
	return out
}

package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadKinds(t *testing.T) {
	p, err := DecodePayload([]byte(`{"n":1.5,"s":"x","b":true,"z":null,"l":[1,"a"],"o":{"k":2}}`))
	require.NoError(t, err)

	assert.Equal(t, KindNumber, p["n"].Kind())
	assert.Equal(t, KindString, p["s"].Kind())
	assert.Equal(t, KindBool, p["b"].Kind())
	assert.True(t, p["z"].IsNull())
	assert.Equal(t, KindList, p["l"].Kind())

	obj, ok := p["o"].AsObject()
	require.True(t, ok)
	n, ok := obj["k"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 2.0, n)
}

func TestDecodePayloadRejectsNonObjects(t *testing.T) {
	for _, in := range []string{``, `  `, `[1,2]`, `"str"`, `42`, `null`} {
		_, err := DecodePayload([]byte(in))
		assert.ErrorIs(t, err, ErrNotObject, "input %q", in)
	}
	_, err := DecodePayload([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestValueJSONRoundTripPreservesStructure(t *testing.T) {
	in := Payload{
		"name":  String("Ada"),
		"tags":  List(String("ice"), Number(3)),
		"inner": Object(map[string]Value{"deep": Bool(false)}),
		"none":  Null(),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := DecodePayload(b)
	require.NoError(t, err)
	assert.True(t, in.Equal(out), "got %s", b)
}

func TestEmptyContainersMarshal(t *testing.T) {
	b, err := json.Marshal(Payload{"l": List(), "o": Object(nil)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"l":[],"o":{}}`, string(b))
}

func TestValueEqual(t *testing.T) {
	assert.True(t, Number(1).Equal(Number(1)))
	assert.False(t, Number(1).Equal(String("1")))
	assert.False(t, List(Number(1)).Equal(List(Number(1), Number(2))))
	assert.True(t, Object(map[string]Value{"a": Null()}).Equal(Object(map[string]Value{"a": Null()})))
}

func TestFromAnyRejectsUnknownTypes(t *testing.T) {
	_, err := FromAny(struct{}{})
	assert.Error(t, err)
}

func TestPayloadKeysSorted(t *testing.T) {
	p := Payload{"b": Null(), "a": Null(), "c": Null()}
	assert.Equal(t, []string{"a", "b", "c"}, p.Keys())
}

func TestPayloadCloneIsIndependent(t *testing.T) {
	p := Payload{"a": Number(1)}
	cp := p.Clone()
	cp["b"] = Number(2)
	assert.Len(t, p, 1)
}

func TestNumbersKeepLiteralText(t *testing.T) {
	in := `{"ticket":9007199254740993,"big":1` + strings.Repeat("0", 400) + `,"ratio":0.10}`
	p, err := DecodePayload([]byte(in))
	require.NoError(t, err)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"big":1`+strings.Repeat("0", 400)+`,"ratio":0.10,"ticket":9007199254740993}`, string(b))

	lit, ok := p["ticket"].Literal()
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", lit)

	f, ok := p["big"].AsNumber()
	require.True(t, ok)
	assert.True(t, math.IsInf(f, 1))
}

func TestNumberLiteralEquality(t *testing.T) {
	assert.True(t, mustNumber(t, "1.0").Equal(mustNumber(t, "1")))
	assert.True(t, mustNumber(t, "3").Equal(Number(3)))
	assert.False(t, mustNumber(t, "9007199254740993").Equal(mustNumber(t, "9007199254740992")))

	for _, bad := range []string{"", "abc", `"1"`, "true", "1 2", "NaN"} {
		_, err := NumberLiteral(json.Number(bad))
		assert.Error(t, err, "literal %q", bad)
	}
}

func mustNumber(t *testing.T, lit string) Value {
	t.Helper()
	v, err := NumberLiteral(json.Number(lit))
	require.NoError(t, err)
	return v
}

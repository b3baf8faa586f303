package bencode

import (
	"fmt"
	"unicode/utf8"
)

const (
	dictStartDelim    = 'd'
	integerStartDelim = 'i'
	listStartDelim    = 'l'
	endDelim          = 'e'
	stringSeparator   = ':'
)

type Kind int

const (
	KindInteger Kind = iota
	KindText
	KindBytes
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "Integer"
	case KindText:
		return "Text"
	case KindBytes:
		return "Bytes"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a decoded bencode value. The set of implementations is closed:
// Integer, Text, Bytes, List and Map.
type Value interface {
	Kind() Kind
	isValue()
}

type Integer int64

// Text holds a string payload whose bytes are valid UTF-8.
type Text string

// Bytes holds a string payload whose bytes are not valid UTF-8.
type Bytes []byte

type List []Value

// Map keys are unique. Iteration order is not meaningful; the encoder
// always emits keys in ascending byte order.
type Map map[string]Value

func (Integer) Kind() Kind { return KindInteger }
func (Text) Kind() Kind    { return KindText }
func (Bytes) Kind() Kind   { return KindBytes }
func (List) Kind() Kind    { return KindList }
func (Map) Kind() Kind     { return KindMap }

func (Integer) isValue() {}
func (Text) isValue()    {}
func (Bytes) isValue()   {}
func (List) isValue()    {}
func (Map) isValue()     {}

// String wraps raw bytes in the matching string variant.
func String(b []byte) Value {
	if utf8.Valid(b) {
		return Text(b)
	}

	return Bytes(append([]byte(nil), b...))
}

func kindOf(v Value) string {
	if v == nil {
		return "nil"
	}

	return v.Kind().String()
}

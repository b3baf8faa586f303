package bencode

import (
	"bytes"
	"maps"
	"slices"
	"strconv"
)

// Encode returns the canonical encoding of value: dictionary keys are
// written in ascending byte order and integers use their shortest decimal
// form. Nil list elements and dictionary entries with nil values are skipped.
func Encode(value Value) []byte {
	var buffer bytes.Buffer

	EncodeTo(&buffer, value)
	return buffer.Bytes()
}

func EncodeTo(buffer *bytes.Buffer, value Value) {
	switch v := value.(type) {
	case Integer:
		encodeInteger(buffer, int64(v))

	case Text:
		encodeString(buffer, []byte(v))

	case Bytes:
		encodeString(buffer, v)

	case List:
		encodeList(buffer, v)

	case Map:
		encodeDict(buffer, v)
	}
}

func encodeDict(buffer *bytes.Buffer, dict Map) {
	buffer.WriteByte(dictStartDelim)

	for _, key := range slices.Sorted(maps.Keys(dict)) {
		value := dict[key]

		if value == nil {
			continue
		}

		encodeString(buffer, []byte(key))
		EncodeTo(buffer, value)
	}

	buffer.WriteByte(endDelim)
}

func encodeInteger(buffer *bytes.Buffer, num int64) {
	buffer.WriteByte(integerStartDelim)
	buffer.WriteString(strconv.FormatInt(num, 10))
	buffer.WriteByte(endDelim)
}

func encodeList(buffer *bytes.Buffer, list List) {
	buffer.WriteByte(listStartDelim)

	for _, item := range list {
		EncodeTo(buffer, item)
	}

	buffer.WriteByte(endDelim)
}

func encodeString(buffer *bytes.Buffer, str []byte) {
	buffer.WriteString(strconv.Itoa(len(str)))
	buffer.WriteByte(stringSeparator)
	buffer.Write(str)
}

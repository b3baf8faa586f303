package bencode

import (
	"strconv"
	"unicode/utf8"
)

const (
	DefaultMaxDepth = 256
)

// Decoder parses bencoded input. The zero value uses DefaultMaxDepth.
type Decoder struct {
	// MaxDepth bounds how deeply lists and dictionaries may nest.
	MaxDepth int
}

type decodeState struct {
	data     []byte
	depth    int
	maxDepth int
	pos      int
}

// Decode parses a single value from the start of data and returns it
// together with the bytes that follow it.
func Decode(data []byte) (Value, []byte, error) {
	return Decoder{}.Decode(data)
}

func (d Decoder) Decode(data []byte) (Value, []byte, error) {
	maxDepth := d.MaxDepth

	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	state := &decodeState{data: data, maxDepth: maxDepth}
	value, err := state.decodeValue()

	if err != nil {
		return nil, nil, err
	}

	return value, data[state.pos:], nil
}

// DecodeValue is like Decode but reports how many bytes were consumed.
func DecodeValue(data []byte) (Value, int, error) {
	value, rest, err := Decode(data)

	if err != nil {
		return nil, 0, err
	}

	return value, len(data) - len(rest), nil
}

func isDigit(char byte) bool {
	return char >= '0' && char <= '9'
}

func (s *decodeState) decodeValue() (Value, error) {
	if s.pos >= len(s.data) {
		return nil, newDecodeError(ErrUnexpectedEOF, s.data, s.pos, "expected a value")
	}

	char := s.data[s.pos]

	switch {
	case isDigit(char):
		return s.decodeString()

	case char == integerStartDelim:
		return s.decodeInteger()

	case char == listStartDelim:
		return s.decodeList()

	case char == dictStartDelim:
		return s.decodeDict()

	default:
		return nil, newDecodeError(ErrUnknownDelimiter, s.data, s.pos, "unsupported delimiter '%c'", char)
	}
}

func (s *decodeState) enter() error {
	s.depth += 1

	if s.depth > s.maxDepth {
		return newDecodeError(ErrMaxDepthExceeded, s.data, s.pos, "nesting exceeds %d levels", s.maxDepth)
	}

	return nil
}

func (s *decodeState) leave() {
	s.depth -= 1
}

func (s *decodeState) decodeDict() (Value, error) {
	start := s.pos

	if err := s.enter(); err != nil {
		return nil, err
	}

	defer s.leave()

	s.pos += 1
	decodedDict := Map{}

	for s.pos < len(s.data) && s.data[s.pos] != endDelim {
		keyOffset := s.pos

		if !isDigit(s.data[s.pos]) {
			return nil, newDecodeError(ErrInvalidDict, s.data, keyOffset, "dictionary key must be a string")
		}

		key, err := s.decodeString()

		if err != nil {
			return nil, err
		}

		textKey, ok := key.(Text)

		if !ok {
			return nil, newDecodeError(ErrInvalidDict, s.data, keyOffset, "dictionary key is not valid UTF-8")
		}

		if _, exists := decodedDict[string(textKey)]; exists {
			return nil, newDecodeError(ErrDuplicateKey, s.data, keyOffset, "key '%s' appears more than once", textKey)
		}

		value, err := s.decodeValue()

		if err != nil {
			return nil, err
		}

		decodedDict[string(textKey)] = value
	}

	if s.pos >= len(s.data) {
		return nil, newDecodeError(ErrInvalidDict, s.data, start, "missing end delimiter '%c'", endDelim)
	}

	s.pos += 1
	return decodedDict, nil
}

func (s *decodeState) decodeList() (Value, error) {
	start := s.pos

	if err := s.enter(); err != nil {
		return nil, err
	}

	defer s.leave()

	s.pos += 1
	decodedList := List{}

	for s.pos < len(s.data) && s.data[s.pos] != endDelim {
		value, err := s.decodeValue()

		if err != nil {
			return nil, err
		}

		decodedList = append(decodedList, value)
	}

	if s.pos >= len(s.data) {
		return nil, newDecodeError(ErrInvalidList, s.data, start, "missing end delimiter '%c'", endDelim)
	}

	s.pos += 1
	return decodedList, nil
}

// i<digits>e, where digits is "0" or a non-zero-led run optionally preceded
// by '-' (but never "-0").
func (s *decodeState) decodeInteger() (Value, error) {
	start := s.pos
	index := start + 1
	negative := false

	if index < len(s.data) && s.data[index] == '-' {
		negative = true
		index += 1
	}

	digitsStart := index

	for index < len(s.data) && isDigit(s.data[index]) {
		index += 1
	}

	digits := s.data[digitsStart:index]

	if index >= len(s.data) {
		return nil, newDecodeError(ErrInvalidInteger, s.data, start, "missing end delimiter '%c'", endDelim)
	}

	if s.data[index] != endDelim {
		return nil, newDecodeError(ErrInvalidInteger, s.data, index, "unexpected character '%c'", s.data[index])
	}

	if len(digits) == 0 {
		return nil, newDecodeError(ErrInvalidInteger, s.data, start, "no digits")
	}

	if digits[0] == '0' && len(digits) > 1 {
		return nil, newDecodeError(ErrInvalidInteger, s.data, start, "invalid leading zero")
	}

	if negative && digits[0] == '0' {
		return nil, newDecodeError(ErrInvalidInteger, s.data, start, "negative zero")
	}

	result, err := strconv.ParseInt(string(s.data[start+1:index]), 10, 64)

	if err != nil {
		return nil, newDecodeError(ErrInvalidInteger, s.data, start, "value does not fit in 64 bits")
	}

	s.pos = index + 1
	return Integer(result), nil
}

func (s *decodeState) decodeString() (Value, error) {
	start := s.pos
	colonIndex := start

	for colonIndex < len(s.data) && isDigit(s.data[colonIndex]) {
		colonIndex += 1
	}

	if colonIndex >= len(s.data) {
		return nil, newDecodeError(ErrInvalidString, s.data, start, "missing separator '%c'", stringSeparator)
	}

	if s.data[colonIndex] != stringSeparator {
		return nil, newDecodeError(ErrInvalidString, s.data, colonIndex, "unexpected character '%c' in string length", s.data[colonIndex])
	}

	lengthStr := s.data[start:colonIndex]

	if lengthStr[0] == '0' && len(lengthStr) > 1 {
		return nil, newDecodeError(ErrInvalidString, s.data, start, "invalid leading zero in string length")
	}

	length, err := strconv.ParseUint(string(lengthStr), 10, 64)

	if err != nil {
		return nil, newDecodeError(ErrInvalidString, s.data, start, "string length does not fit in 64 bits")
	}

	payloadStart := colonIndex + 1
	remaining := uint64(len(s.data) - payloadStart)

	if length > remaining {
		return nil, newDecodeError(ErrInvalidString, s.data, start, "string length %d exceeds remaining input (%d bytes)", length, remaining)
	}

	endIndex := payloadStart + int(length)
	payload := s.data[payloadStart:endIndex]
	s.pos = endIndex

	if utf8.Valid(payload) {
		return Text(payload), nil
	}

	return Bytes(append([]byte(nil), payload...)), nil
}

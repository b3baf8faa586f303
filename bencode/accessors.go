package bencode

// Typed lookups over a decoded dictionary. Every document-shape check goes
// through these so that callers see MissingKeyError and WrongTypeError
// instead of ad-hoc messages.

func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}

func (m Map) lookup(key string) (Value, error) {
	value, ok := m[key]

	if !ok || value == nil {
		return nil, &MissingKeyError{Key: key}
	}

	return value, nil
}

func (m Map) Int(key string) (int64, error) {
	value, err := m.lookup(key)

	if err != nil {
		return 0, err
	}

	return asInt(key, value)
}

func (m Map) Text(key string) (string, error) {
	value, err := m.lookup(key)

	if err != nil {
		return "", err
	}

	return asText(key, value)
}

func (m Map) Bytes(key string) ([]byte, error) {
	value, err := m.lookup(key)

	if err != nil {
		return nil, err
	}

	return asBytes(key, value)
}

// Raw returns the payload of either string variant. Binary fields such as
// piece checksums or compact peer lists can happen to be valid UTF-8, in
// which case the decoder produces Text rather than Bytes.
func (m Map) Raw(key string) ([]byte, error) {
	value, err := m.lookup(key)

	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case Text:
		return []byte(v), nil
	case Bytes:
		return v, nil
	default:
		return nil, &WrongTypeError{Key: key, Expected: KindBytes, Found: kindOf(value)}
	}
}

func (m Map) List(key string) (List, error) {
	value, err := m.lookup(key)

	if err != nil {
		return nil, err
	}

	return asList(key, value)
}

func (m Map) Dict(key string) (Map, error) {
	value, err := m.lookup(key)

	if err != nil {
		return nil, err
	}

	return asDict(key, value)
}

func AsInt(value Value) (int64, error) {
	return asInt("", value)
}

func AsText(value Value) (string, error) {
	return asText("", value)
}

func AsBytes(value Value) ([]byte, error) {
	return asBytes("", value)
}

func AsList(value Value) (List, error) {
	return asList("", value)
}

func AsDict(value Value) (Map, error) {
	return asDict("", value)
}

func asInt(key string, value Value) (int64, error) {
	if v, ok := value.(Integer); ok {
		return int64(v), nil
	}

	return 0, &WrongTypeError{Key: key, Expected: KindInteger, Found: kindOf(value)}
}

func asText(key string, value Value) (string, error) {
	if v, ok := value.(Text); ok {
		return string(v), nil
	}

	return "", &WrongTypeError{Key: key, Expected: KindText, Found: kindOf(value)}
}

func asBytes(key string, value Value) ([]byte, error) {
	if v, ok := value.(Bytes); ok {
		return v, nil
	}

	return nil, &WrongTypeError{Key: key, Expected: KindBytes, Found: kindOf(value)}
}

func asList(key string, value Value) (List, error) {
	if v, ok := value.(List); ok {
		return v, nil
	}

	return nil, &WrongTypeError{Key: key, Expected: KindList, Found: kindOf(value)}
}

func asDict(key string, value Value) (Map, error) {
	if v, ok := value.(Map); ok {
		return v, nil
	}

	return nil, &WrongTypeError{Key: key, Expected: KindMap, Found: kindOf(value)}
}

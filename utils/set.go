package utils

// Set is not safe for concurrent use.
type Set struct {
	entries map[string]struct{}
}

func NewSet() *Set {
	return &Set{
		entries: make(map[string]struct{}),
	}
}

func (s *Set) Add(entry string) {
	s.entries[entry] = struct{}{}
}

// AddIfAbsent adds entry and reports whether it was missing.
func (s *Set) AddIfAbsent(entry string) bool {
	if s.Contains(entry) {
		return false
	}

	s.Add(entry)
	return true
}

func (s *Set) Remove(entry string) {
	delete(s.entries, entry)
}

func (s *Set) Contains(entry string) bool {
	_, exists := s.entries[entry]
	return exists
}

func (s *Set) Size() int {
	return len(s.entries)
}

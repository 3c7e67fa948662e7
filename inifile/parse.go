// Package inifile reads and writes the small INI dialect used by
// dicetest.ini: [section] headers, key = value lines, and # or ; comments.
// Section and key names are case-insensitive; values keep their case.
package inifile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// File represents a parsed INI file.
type File struct {
	Sections []Section
}

// Section represents a named section in an INI file.
type Section struct {
	Name   string     // e.g., "run", "property.sort"
	Values []KeyValue // preserves order
}

// KeyValue represents a key-value pair.
type KeyValue struct {
	Key   string
	Value string
	Line  int // 0 for values added with Set
}

// SyntaxError reports a line that is not a comment, a section header or a
// key-value pair.
type SyntaxError struct {
	Line   int
	Text   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("inifile: line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ValueError reports a value that does not convert to the requested type.
type ValueError struct {
	Section string
	Key     string
	Value   string
	Err     error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("inifile: [%s] %s = %q: %v", e.Section, e.Key, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}

// Parse reads an INI file from the given reader.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	var currentSection *Section

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			name := strings.ToLower(strings.TrimSpace(strings.Trim(line, "[]")))
			if name == "" {
				return nil, &SyntaxError{Line: lineNo, Text: line, Reason: "empty section name"}
			}
			f.Sections = append(f.Sections, Section{Name: name})
			currentSection = &f.Sections[len(f.Sections)-1]
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &SyntaxError{Line: lineNo, Text: line, Reason: "expected key = value"}
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return nil, &SyntaxError{Line: lineNo, Text: line, Reason: "empty key"}
		}
		if currentSection == nil {
			return nil, &SyntaxError{Line: lineNo, Text: line, Reason: "key outside of any section"}
		}
		currentSection.Values = append(currentSection.Values, KeyValue{
			Key:   key,
			Value: strings.TrimSpace(value),
			Line:  lineNo,
		})
	}

	return f, scanner.Err()
}

// ParseFile reads and parses an INI file from disk.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Section returns the section with the given name (case-insensitive), or
// nil. The accessors of Section accept a nil receiver.
func (f *File) Section(name string) *Section {
	name = strings.ToLower(name)
	for i := range f.Sections {
		if f.Sections[i].Name == name {
			return &f.Sections[i]
		}
	}
	return nil
}

// Get returns the last value for a key in a section.
func (f *File) Get(section, key string) string {
	return f.Section(section).Get(key)
}

// GetAll returns all values for a key in a section.
func (f *File) GetAll(section, key string) []string {
	return f.Section(section).GetAll(key)
}

// SectionsWithPrefix returns sections whose names start with prefix.
func (f *File) SectionsWithPrefix(prefix string) []Section {
	prefix = strings.ToLower(prefix)
	var result []Section
	for _, s := range f.Sections {
		if strings.HasPrefix(s.Name, prefix) {
			result = append(result, s)
		}
	}
	return result
}

// Get returns the last value for a key (case-insensitive).
func (s *Section) Get(key string) string {
	v, _ := s.lookup(key)
	return v
}

// GetAll returns all values for a key (case-insensitive).
func (s *Section) GetAll(key string) []string {
	if s == nil {
		return nil
	}
	key = strings.ToLower(key)
	var result []string
	for _, kv := range s.Values {
		if kv.Key == key {
			result = append(result, kv.Value)
		}
	}
	return result
}

// HasKey returns true if the section contains the given key.
func (s *Section) HasKey(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

func (s *Section) lookup(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	key = strings.ToLower(key)
	var (
		result string
		found  bool
	)
	for _, kv := range s.Values {
		if kv.Key == key {
			result, found = kv.Value, true
		}
	}
	return result, found
}

// Int returns the key's value as an int. ok is false when the key is
// absent or empty.
func (s *Section) Int(key string) (v int, ok bool, err error) {
	raw, ok := s.lookup(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	v, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, s.valueError(key, raw, err)
	}
	return v, true, nil
}

// Uint64 returns the key's value as a uint64.
func (s *Section) Uint64(key string) (v uint64, ok bool, err error) {
	raw, ok := s.lookup(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, s.valueError(key, raw, err)
	}
	return v, true, nil
}

// Bool returns the key's value as a bool. It accepts the strconv.ParseBool
// forms plus yes/no and on/off.
func (s *Section) Bool(key string) (v bool, ok bool, err error) {
	raw, ok := s.lookup(key)
	if !ok || raw == "" {
		return false, false, nil
	}
	switch strings.ToLower(raw) {
	case "yes", "on":
		return true, true, nil
	case "no", "off":
		return false, true, nil
	}
	v, err = strconv.ParseBool(raw)
	if err != nil {
		return false, false, s.valueError(key, raw, err)
	}
	return v, true, nil
}

// Duration returns the key's value as a time.Duration ("30s", "2m").
func (s *Section) Duration(key string) (v time.Duration, ok bool, err error) {
	raw, ok := s.lookup(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	v, err = time.ParseDuration(raw)
	if err != nil {
		return 0, false, s.valueError(key, raw, err)
	}
	return v, true, nil
}

func (s *Section) valueError(key, raw string, err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		err = ne.Err
	}
	return &ValueError{Section: s.Name, Key: strings.ToLower(key), Value: raw, Err: err}
}

// Set sets a key-value pair in the specified section.
// If the section doesn't exist, it is created.
// If the key already exists, its value is replaced (destructive overwrite).
func (f *File) Set(section, key, value string) {
	section = strings.ToLower(section)
	key = strings.ToLower(key)

	s := f.Section(section)
	if s == nil {
		f.Sections = append(f.Sections, Section{Name: section})
		s = &f.Sections[len(f.Sections)-1]
	}

	for i := range s.Values {
		if s.Values[i].Key == key {
			s.Values[i].Value = value
			return
		}
	}
	s.Values = append(s.Values, KeyValue{Key: key, Value: value})
}

// Write serializes the INI file to the given writer.
func (f *File) Write(w io.Writer) error {
	for i, section := range f.Sections {
		if _, err := fmt.Fprintf(w, "[%s]\n", section.Name); err != nil {
			return err
		}

		for _, kv := range section.Values {
			if _, err := fmt.Fprintf(w, "%s = %s\n", kv.Key, kv.Value); err != nil {
				return err
			}
		}

		// Blank line between sections, but not after the last one
		if i < len(f.Sections)-1 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteFile writes the INI file to the specified path.
func (f *File) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := f.Write(file); err != nil {
		return err
	}

	return file.Sync()
}

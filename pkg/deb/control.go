package deb

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Fields holds the fields of a Debian control paragraph. Keys use their
// canonical capitalization (Package, Version, Depends, ...).
type Fields map[string]string

// canonicalOrder lists the fields emitted first, in this order. Remaining
// fields follow alphabetically so output is deterministic.
var canonicalOrder = []string{
	"Package", "Version", "Architecture", "Maintainer",
	"Installed-Size", "Depends", "Recommends", "Suggests",
	"Section", "Priority", "Homepage", "Description",
}

// Clone returns a copy of the fields.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Depends parses the Depends field. A missing or malformed field yields an
// empty relation list.
func (f Fields) Depends() Relations {
	rs, err := ParseRelations(f["Depends"])
	if err != nil {
		return nil
	}
	return rs
}

// SetDepends replaces the Depends field. An empty list removes the field.
func (f Fields) SetDepends(rs Relations) {
	if len(rs) == 0 {
		delete(f, "Depends")
		return
	}
	f["Depends"] = rs.String()
}

// ParseControl reads a single control paragraph in deb822 format.
// Continuation lines (leading whitespace) are folded into the previous
// field with their newlines preserved.
func ParseControl(r io.Reader) (Fields, error) {
	fields := make(Fields)
	var last string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if len(fields) > 0 {
				break // end of first paragraph
			}
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if last == "" {
				return nil, fmt.Errorf("continuation line before any field: %q", line)
			}
			fields[last] += "\n" + line
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed control line: %q", line)
		}
		key = strings.TrimSpace(key)
		fields[key] = strings.TrimSpace(value)
		last = key
	}
	return fields, scanner.Err()
}

// FormatControl renders the fields as a control paragraph with a stable
// field order: the canonical fields first, then the rest alphabetically.
func FormatControl(f Fields) []byte {
	var buf bytes.Buffer

	emitted := make(map[string]bool)
	for _, key := range canonicalOrder {
		if v, ok := f[key]; ok {
			fmt.Fprintf(&buf, "%s: %s\n", key, v)
			emitted[key] = true
		}
	}

	rest := make([]string, 0, len(f))
	for key := range f {
		if !emitted[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(&buf, "%s: %s\n", key, f[key])
	}

	return buf.Bytes()
}

// LoadControlFile reads a control paragraph from a file.
func LoadControlFile(path string) (Fields, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseControl(file)
}

// PatchControlFile merges additional Depends relations into a control file,
// creating the file when it does not exist. Pre-existing fields and
// relations are kept; the new relations are unioned into Depends.
func PatchControlFile(path string, extra Relations) error {
	fields := make(Fields)
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadControlFile(path)
		if err != nil {
			return fmt.Errorf("load control file %s: %w", path, err)
		}
		fields = loaded
	}

	fields.SetDepends(fields.Depends().Merge(extra))
	return os.WriteFile(path, FormatControl(fields), 0644)
}

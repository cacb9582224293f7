package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Localizer turns a stored key into display text. Rooms only ever carry keys.
type Localizer interface {
	Localize(key string) string
}

// Strings is a key to text table. Unknown keys fall back to a readable form
// of the key itself.
type Strings map[string]string

func (s Strings) Localize(key string) string {
	if text, ok := s[key]; ok {
		return text
	}
	return humanize(key)
}

// English loads the embedded English table.
func English() (Strings, error) {
	raw, err := dataFS.ReadFile("data/en.csv")
	if err != nil {
		return nil, fmt.Errorf("read strings: %w", err)
	}
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comment = '#'
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse strings: %w", err)
	}
	out := make(Strings, len(records))
	for _, rec := range records {
		out[rec[0]] = rec[1]
	}
	return out, nil
}

// humanize maps "role.bank.security_guard" to "Security guard".
func humanize(key string) string {
	last := key
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		last = key[i+1:]
	}
	last = strings.ReplaceAll(last, "_", " ")
	if last == "" {
		return key
	}
	return strings.ToUpper(last[:1]) + last[1:]
}

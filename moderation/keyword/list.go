// Banned-term matching for chat messages.
package keyword

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Name of the set read from a JSON terms file.
const SetName = "banned-words"

// Terms matched by DefaultList: invite links and religious insults.
var DefaultTerms = []string{
	".gg",
	"/gg",
	"sunucumuza",
	"allahını",
	"peygamberini",
	"kitabını",
	"kuranını",
	"discord.gg",
	"Muhammedini",
}

// Case-insensitive substring matcher over a fixed set of terms. Immutable once built; safe for concurrent use.
type List struct {
	terms []string
	raw   []string
}

func NewList(terms []string) *List {
	l := &List{}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		f := Fold(t)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		l.terms = append(l.terms, f)
		l.raw = append(l.raw, t)
	}
	return l
}

func DefaultList() *List {
	return NewList(DefaultTerms)
}

// Loads terms from a JSON file shaped like {"banned-words": ["term", ...]}.
func LoadFromFileJSON(p string) (*List, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var sets map[string][]string
	if err := json.Unmarshal(raw, &sets); err != nil {
		return nil, fmt.Errorf("parsing banned terms file: %w", err)
	}
	terms, ok := sets[SetName]
	if !ok {
		return nil, fmt.Errorf("banned terms file has no %q set", SetName)
	}
	return NewList(terms), nil
}

// Returns the first term (as configured) contained in text.
func (l *List) Match(text string) (string, bool) {
	if l == nil || text == "" {
		return "", false
	}
	folded := Fold(text)
	for i, t := range l.terms {
		if strings.Contains(folded, t) {
			return l.raw[i], true
		}
	}
	return "", false
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.terms)
}

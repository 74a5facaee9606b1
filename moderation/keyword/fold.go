package keyword

import (
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Case-folds free-form text for matching: unicode NFC normalization, Turkish lower-casing ("İ" becomes "i"), dotless "ı" merged into "i" so text typed on a non-Turkish keyboard ("I") matches too, then whitespace collapsed to single spaces.
func Fold(text string) string {
	// casers carry state; build one per call to stay safe for concurrent use
	lower := cases.Lower(language.Turkish)
	out, _, err := transform.String(transform.Chain(norm.NFC, lower), text)
	if err != nil {
		slog.Warn("unicode folding error", "err", err)
		out = strings.ToLower(text)
	}
	out = strings.ReplaceAll(out, "ı", "i")
	return strings.Join(strings.Fields(out), " ")
}

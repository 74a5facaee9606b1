package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Upper bound on rendered history lines, to keep replies within message size limits.
const MaxRenderedEntries = 12

const NoSanctionsText = "No sanctions on record."

// Layout for displayed timestamps (day.month.year, 24h clock).
const DisplayLayout = "02.01.2006 15:04:05"

// Formats t in loc with DisplayLayout. A nil loc means UTC.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DisplayLayout)
}

// Renders history most-recent-first, capped at MaxRenderedEntries lines. Empty history renders as NoSanctionsText.
func Render(history []Record, loc *time.Location) string {
	if len(history) == 0 {
		return NoSanctionsText
	}
	lines := make([]string, 0, min(len(history), MaxRenderedEntries))
	for i := len(history) - 1; i >= 0 && len(lines) < MaxRenderedEntries; i-- {
		lines = append(lines, renderLine(history[i], loc))
	}
	return strings.Join(lines, "\n")
}

func renderLine(r Record, loc *time.Location) string {
	status := "❌ Inactive"
	if r.Active {
		status = "✅ Active"
	}
	end := "Indefinite"
	if r.EndAt != nil {
		end = FormatLocal(*r.EndAt, loc)
	}
	return fmt.Sprintf("• %s | **Reason**: %s | **Start**: %s | **End**: %s", status, r.Reason, FormatLocal(r.StartAt, loc), end)
}

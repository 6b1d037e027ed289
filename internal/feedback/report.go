package feedback

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/myrjola/liftscore/internal/i18n"
)

//nolint:gochecknoglobals // goldmark.Markdown is safe for concurrent use
var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

func patternLabel(lang i18n.Language, p Pattern) string {
	return i18n.Translate(lang, "pattern."+string(p))
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// escapeCell keeps user supplied text from breaking out of a table cell.
func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}

// RenderReport renders a summary as Markdown with labels in lang. Recommendations are not translated.
func RenderReport(s Summary, lang i18n.Language) string {
	t := func(key string) string { return i18n.Translate(lang, key) }
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t("report.title"))
	fmt.Fprintf(&b, "%s: **%d%%**\n\n", t("report.quality"), int(math.Round(s.CompletionQuality*100))) //nolint:mnd // percent
	if s.Recommendation != "" {
		fmt.Fprintf(&b, "%s\n\n", s.Recommendation)
	}

	if len(s.Movements) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", t("report.movements"))
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			t("report.column.movement"), t("report.column.assessment"), t("report.column.first_set_reps"),
			t("report.column.last_set_reps"), t("report.column.decline_ratio"), t("report.column.multiplier"))
		b.WriteString("|---|---|---:|---:|---:|---:|\n")
		for _, m := range s.Movements {
			ratio := "-"
			if m.DeclineRatio != nil {
				ratio = formatNumber(*m.DeclineRatio)
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %d | %s | %s |\n",
				escapeCell(m.MovementName), patternLabel(lang, m.Pattern), m.FirstSetReps, m.LastSetReps, ratio,
				formatNumber(m.SuggestedMultiplier))
		}
		b.WriteString("\n")
	}

	if len(s.Imbalances) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", t("report.balance"))
		for _, im := range s.Imbalances {
			dominates := fmt.Sprintf(t("report.imbalance.dominates"), im.Dominant, formatNumber(im.Ratio))
			fmt.Fprintf(&b, "- **%s / %s**: %s %s\n", im.Pair[0], im.Pair[1], dominates, im.Recommendation)
		}
	}
	return b.String()
}

// RenderReportHTML renders a summary as an HTML fragment.
func RenderReportHTML(s Summary, lang i18n.Language) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(RenderReport(s, lang)), &buf); err != nil {
		return "", fmt.Errorf("convert report to html: %w", err)
	}
	return buf.String(), nil
}

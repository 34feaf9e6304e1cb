package notify

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"vigila/src/models"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
)

// Subject is the alert title for the given day.
func Subject(date time.Time) string {
	return "Vigila High Volume Alert - " + date.Format("01/02/2006")
}

// -----------------------------------------------------------------------------

// Markdown renders the alert body. Snapshots keep the order given.
func Markdown(threshold float64, team string, alerts []models.MVolumeSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Volume Alert - These **%d** symbols exhibit unusual trading activity, exceeding %s%% of previous day volume:\n\n",
		len(alerts), humanize.Ftoa(threshold))

	for _, a := range alerts {
		fmt.Fprintf(&b, "**%s**:\n\n", a.Symbol)
		fmt.Fprintf(&b, "- Current Volume: %s\n", humanize.Comma(a.CurrentVolume))
		fmt.Fprintf(&b, "- Previous Volume: %s\n", humanize.Comma(a.PreviousVolume))
		fmt.Fprintf(&b, "- Ratio: %s%%\n\n", a.Ratio.StringFixed(1))
	}

	b.WriteString(team)
	b.WriteString("\n")
	return b.String()
}

// -----------------------------------------------------------------------------

// HTML converts the markdown body into an HTML document for e-mail clients.
func HTML(markdown string) (string, error) {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &body); err != nil {
		return "", fmt.Errorf("failed to render alert: %w", err)
	}
	return "<html>\n<body>\n" + body.String() + "</body>\n</html>\n", nil
}

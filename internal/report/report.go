package report

import (
	"fmt"
	"html"
	"strings"

	"press-clippings/internal/metrics"
	"press-clippings/internal/models"

	"github.com/russross/blackfriday/v2"
)

// Markdown renders a clipping's cached metrics as a markdown report
func Markdown(c *models.Clipping, m models.ClippingMetrics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", c.Name)
	if c.Topic != nil {
		fmt.Fprintf(&b, "**Topic:** %s", c.Topic.Name)
		if m.Crisis {
			b.WriteString(" (in crisis)")
		}
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "**Window:** %s to %s\n\n",
		c.StartDate.Format(metrics.DateLayout), c.EndDate.Format(metrics.DateLayout))
	fmt.Fprintf(&b, "**Articles:** %d", m.NewsCount)
	if m.DateRange.From != nil && m.DateRange.To != nil {
		fmt.Fprintf(&b, ", published %s to %s", *m.DateRange.From, *m.DateRange.To)
	}
	b.WriteString("\n\n")

	b.WriteString("## Valuation\n\n")
	b.WriteString("| Valuation | Count | % |\n|---|---:|---:|\n")
	writeShare(&b, "Positive", m.Valuation.Positive)
	writeShare(&b, "Neutral", m.Valuation.Neutral)
	writeShare(&b, "Negative", m.Valuation.Negative)
	fmt.Fprintf(&b, "| **Total** | %d | |\n\n", m.Valuation.Total)

	writeDistribution(&b, "Media", m.MediaStats)
	writeDistribution(&b, "Support", m.SupportStats)
	writeDistribution(&b, "Mentions", m.MentionStats)

	b.WriteString("## Reach\n\n")
	if m.Audience.Total != nil {
		fmt.Fprintf(&b, "- Audience: %d total, %.2f average, %d max\n",
			*m.Audience.Total, *m.Audience.Average, m.Audience.Max.Value)
	} else {
		b.WriteString("- Audience: n/a\n")
	}
	if m.Quotation.Total != nil {
		fmt.Fprintf(&b, "- Quotation: %.2f total, %.2f average, %.2f max\n",
			*m.Quotation.Total, *m.Quotation.Average, m.Quotation.Max.Value)
	} else {
		b.WriteString("- Quotation: n/a\n")
	}

	fmt.Fprintf(&b, "\n_Generated %s_\n", m.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}

func writeShare(b *strings.Builder, label string, s models.Share) {
	fmt.Fprintf(b, "| %s | %d | %.2f |\n", label, s.Count, s.Percentage)
}

func writeDistribution(b *strings.Builder, title string, d models.DistributionStats) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(d.Items) == 0 {
		b.WriteString("_None recorded._\n\n")
		return
	}
	b.WriteString("| Name | Count | % |\n|---|---:|---:|\n")
	for _, item := range d.Items {
		fmt.Fprintf(b, "| %s | %d | %.2f |\n", escapeCell(item.Key), item.Count, item.Percentage)
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// HTML renders the markdown report as a standalone HTML page
func HTML(c *models.Clipping, m models.ClippingMetrics) string {
	extensions := blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs
	// clipping and media names are user input, so raw HTML is dropped
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags | blackfriday.SkipHTML,
	})
	body := blackfriday.Run([]byte(Markdown(c, m)), blackfriday.WithRenderer(renderer), blackfriday.WithExtensions(extensions))
	return wrapWithTheme(string(body), c.Name)
}

// wrapWithTheme wraps the HTML content with consistent styling
func wrapWithTheme(content, title string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>` + html.EscapeString(title) + ` - Press Clippings</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #f8f9fa;
            padding: 20px;
        }

        .content {
            max-width: 900px;
            margin: 0 auto;
            background: white;
            padding: 2rem 3rem;
            border-radius: 12px;
            border: 1px solid #e5e7eb;
        }

        .content h2 {
            color: #2563eb;
        }

        table {
            border-collapse: collapse;
            margin-bottom: 1.5rem;
        }

        th, td {
            border: 1px solid #e5e7eb;
            padding: 0.4rem 0.8rem;
        }
    </style>
</head>
<body>
    <div class="content">
` + content + `
    </div>
</body>
</html>`
}

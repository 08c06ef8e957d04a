package export

import (
	"fmt"
	"io"
	"strings"

	"press-clippings/internal/metrics"
	"press-clippings/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	articlesSheet = "Articles"
	metricsSheet  = "Metrics"
)

var articleHeader = []interface{}{
	"Date", "Title", "Media", "Support", "Valuation", "Political factor",
	"Audience", "Quotation", "Mentions", "URL",
}

// WriteClipping writes a workbook with one row per member article and a
// summary of the clipping's cached metrics
func WriteClipping(w io.Writer, c *models.Clipping, articles []models.Article) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", articlesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeArticles(f, articles); err != nil {
		return err
	}

	if _, err := f.NewSheet(metricsSheet); err != nil {
		return fmt.Errorf("failed to add metrics sheet: %w", err)
	}
	if err := writeMetrics(f, c, c.Metrics.Data()); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeArticles(f *excelize.File, articles []models.Article) error {
	rows := [][]interface{}{articleHeader}
	for _, a := range articles {
		row := []interface{}{
			a.Date.Format(metrics.DateLayout), a.Title, a.Media, a.Support, "", a.PoliticalFactor,
			nil, nil, strings.Join(mentionNames(a), ", "), a.URL,
		}
		if a.Valuation != nil {
			row[4] = string(*a.Valuation)
		}
		if a.AudienceSize != nil {
			row[6] = *a.AudienceSize
		}
		if a.Quotation != nil {
			row[7] = a.Quotation.InexactFloat64()
		}
		rows = append(rows, row)
	}
	return setRows(f, articlesSheet, rows)
}

func writeMetrics(f *excelize.File, c *models.Clipping, m models.ClippingMetrics) error {
	rows := [][]interface{}{
		{"Clipping", c.Name},
		{"Window", c.StartDate.Format(metrics.DateLayout) + " to " + c.EndDate.Format(metrics.DateLayout)},
		{"Articles", m.NewsCount},
		{"Crisis", m.Crisis},
		{},
		{"Valuation", "Count", "Percentage"},
		{"Positive", m.Valuation.Positive.Count, m.Valuation.Positive.Percentage},
		{"Neutral", m.Valuation.Neutral.Count, m.Valuation.Neutral.Percentage},
		{"Negative", m.Valuation.Negative.Count, m.Valuation.Negative.Percentage},
	}
	rows = appendDistribution(rows, "Media", m.MediaStats)
	rows = appendDistribution(rows, "Support", m.SupportStats)
	rows = appendDistribution(rows, "Mentions", m.MentionStats)

	rows = append(rows, []interface{}{}, []interface{}{"Reach", "Total", "Average", "Max"})
	if m.Audience.Total != nil {
		rows = append(rows, []interface{}{"Audience", *m.Audience.Total, *m.Audience.Average, m.Audience.Max.Value})
	}
	if m.Quotation.Total != nil {
		rows = append(rows, []interface{}{"Quotation", *m.Quotation.Total, *m.Quotation.Average, m.Quotation.Max.Value})
	}
	return setRows(f, metricsSheet, rows)
}

func appendDistribution(rows [][]interface{}, title string, d models.DistributionStats) [][]interface{} {
	rows = append(rows, []interface{}{}, []interface{}{title, "Count", "Percentage"})
	for _, item := range d.Items {
		rows = append(rows, []interface{}{item.Key, item.Count, item.Percentage})
	}
	return rows
}

func setRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func mentionNames(a models.Article) []string {
	names := make([]string, 0, len(a.MentionLinks))
	for _, link := range a.MentionLinks {
		names = append(names, link.Mention.Name)
	}
	return names
}

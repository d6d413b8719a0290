package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hdsoft/unisearch/pkg/chart"
	"github.com/hdsoft/unisearch/pkg/payload"
	"github.com/hdsoft/unisearch/pkg/storage"
)

var timeNow = time.Now

// Define styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

const maxCellWidth = 40

// renderTable draws rows as a bordered table. The first row is the header.
func renderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = truncateCell(cell)
	}
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(header))
		for i := range cells {
			if i < len(row) {
				cells[i] = truncateCell(row[i])
			}
		}
		body = append(body, cells)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(header...).
		Rows(body...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render() + "\n"
}

func truncateCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > maxCellWidth {
		return string(r[:maxCellWidth-1]) + "…"
	}
	return s
}

// formatRecords renders at most limit records using the inspected fields as
// columns.
func formatRecords(records []payload.Record, fields []payload.FieldDescriptor, limit int) string {
	if len(records) == 0 {
		return noDataStyle.Render("No records.")
	}
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Label
	}
	rows := [][]string{header}
	for i, rec := range records {
		if limit > 0 && i >= limit {
			break
		}
		row := make([]string, len(fields))
		for j, f := range fields {
			row[j] = chart.ValueLabel(rec.Value(f.Name))
		}
		rows = append(rows, row)
	}
	out := renderTable(rows)
	if limit > 0 && len(records) > limit {
		out += metaStyle.Render(fmt.Sprintf("… %d more records", len(records)-limit)) + "\n"
	}
	return out
}

func formatFavorites(favs []payload.Favorite) string {
	if len(favs) == 0 {
		return noDataStyle.Render("No favorites saved yet.")
	}
	rows := [][]string{{"ID", "Name", "Query", "Created"}}
	for _, f := range favs {
		rows = append(rows, []string{fmt.Sprint(f.ID), f.Title(), f.QueryText, f.CreateDate})
	}
	return renderTable(rows)
}

func formatReports(reports []payload.SavedReport) string {
	if len(reports) == 0 {
		return noDataStyle.Render("No reports saved yet.")
	}
	rows := [][]string{{"ID", "Name", "Type", "Query", "Created"}}
	for _, r := range reports {
		rows = append(rows, []string{fmt.Sprint(r.ID), r.Name, r.VisualizationType, r.QueryText, r.CreateDate})
	}
	return renderTable(rows)
}

func formatHistory(entries []storage.SearchEntry) string {
	if len(entries) == 0 {
		return noDataStyle.Render("No searches recorded.")
	}
	rows := [][]string{{"When", "Query", "Result", "Took"}}
	for _, e := range entries {
		result := fmt.Sprintf("%s, %d records", e.Shape, e.RecordCount)
		if e.Error != "" {
			result = errorStyle.Render("failed")
		}
		rows = append(rows, []string{formatTime(e.SearchedAt), e.QueryText, result, e.Duration.Round(time.Millisecond).String()})
	}
	return renderTable(rows)
}

func formatStats(stats storage.Stats) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Local cache"))
	b.WriteString("\n")
	rows := [][]string{
		{"Item", "Count"},
		{"Favorites", formatCount(stats.Favorites)},
		{"Reports", formatCount(stats.Reports)},
		{"Searches", formatCount(stats.Searches)},
		{"Schema version", fmt.Sprint(stats.SchemaVersion)},
	}
	b.WriteString(renderTable(rows))
	if stats.PendingMigrations > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("%d cache migrations pending", stats.PendingMigrations)))
		b.WriteString("\n")
	}
	if stats.LastSyncedAt != nil {
		b.WriteString(metaStyle.Render("Last synced " + formatTime(*stats.LastSyncedAt)))
		b.WriteString("\n")
	}
	return b.String()
}

func formatCount(n int) string {
	return chart.FormatNumber(float64(n))
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	now := timeNow()
	diff := now.Sub(t)

	// If it's within the last day, show relative time
	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		hours := int(diff.Hours())
		return fmt.Sprintf("%d hours ago", hours)
	}

	// If it's within the last week, show days ago
	if diff < 7*24*time.Hour {
		days := int(diff.Hours() / 24)
		return fmt.Sprintf("%d days ago", days)
	}

	// Otherwise show the date
	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

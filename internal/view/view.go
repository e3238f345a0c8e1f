package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/sprintpulse/sprintpulse/internal/compute"
)

//go:embed templates/*.html
var templatesFS embed.FS

// dateLayout renders dates as MM/DD/YYYY.
const dateLayout = "01/02/2006"

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"date":    formatDate,
	"percent": formatPercent,
	"points":  formatPoints,
}).ParseFS(templatesFS, "templates/*.html"))

// Links builds the web UI URLs a report links to. connector.Jira implements it.
type Links interface {
	VelocityChartURL(boardID int64) string
	BoardURL(boardID int64) string
}

type boardView struct {
	*compute.BoardReport
	Title       string
	VelocityURL string
	BoardURL    string
}

type pageView struct {
	Title  string
	Week   time.Time
	Boards []boardView
}

// RenderVelocity renders the weekly velocity digest for reports.
func RenderVelocity(title string, week time.Time, reports []*compute.BoardReport, links Links) (string, error) {
	page := pageView{Title: title, Week: week}
	for _, r := range reports {
		page.Boards = append(page.Boards, boardView{
			BoardReport: r,
			Title:       r.Board.Title(),
			VelocityURL: links.VelocityChartURL(r.Board.ID),
			BoardURL:    links.BoardURL(r.Board.ID),
		})
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "velocity.html", page); err != nil {
		return "", fmt.Errorf("view: render velocity: %w", err)
	}
	return buf.String(), nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// formatPercent renders "n/a" when the value is absent.
func formatPercent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

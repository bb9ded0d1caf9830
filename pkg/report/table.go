package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// WeakMatchMarker flags rows whose names look unrelated
const WeakMatchMarker = "weak match"

// RenderTable prints the report rows. Rows below threshold get the weak match marker
func RenderTable(w io.Writer, rows []models.ReportRow, threshold float64) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Produit", "Concurrent", "Nom concurrent", "Similarité", "Mon prix", "Prix concurrent", "Diff (%)", ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 40},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	cheaper := 0
	for _, r := range rows {
		note := ""
		if r.NameSimilarity < threshold {
			note = WeakMatchMarker
		}
		if r.IsCheaper {
			cheaper++
		}
		t.AppendRow(table.Row{
			r.MyProduct,
			r.Competitor,
			r.CompetitorProductName,
			strconv.FormatFloat(r.NameSimilarity, 'f', 2, 64),
			models.FormatPrice(r.MyPrice),
			models.FormatPrice(r.CompetitorPrice),
			r.PriceDiff.String(),
			note,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Moins cher", strconv.Itoa(cheaper) + "/" + strconv.Itoa(len(rows))})
	t.Render()
}

// Totals is the run-level outcome shown under the report
type Totals struct {
	Total     int
	Succeeded int
	Failed    int
	Forwarded int
	Skipped   int
	Counts    map[string]int // By status label
	Report    string
	Warnings  []string
}

// RenderSummary prints per-status counts, then the run totals and warnings
func RenderSummary(w io.Writer, s Totals) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Statut", "Paires"})

	labels := make([]string, 0, len(s.Counts))
	for label := range s.Counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if s.Counts[labels[i]] != s.Counts[labels[j]] {
			return s.Counts[labels[i]] > s.Counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	for _, label := range labels {
		t.AppendRow(table.Row{label, s.Counts[label]})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Succès", s.Succeeded})
	t.AppendRow(table.Row{"Échecs", s.Failed})
	t.AppendRow(table.Row{"Via le navigateur", s.Forwarded})
	if s.Skipped > 0 {
		t.AppendRow(table.Row{"Non lancées", s.Skipped})
	}
	t.AppendFooter(table.Row{"Total", s.Total})
	t.Render()

	if s.Report != "" {
		io.WriteString(w, "Rapport: "+s.Report+"\n")
	}
	for _, warn := range s.Warnings {
		io.WriteString(w, "Attention: "+warn+"\n")
	}
}

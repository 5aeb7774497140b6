package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"scadenze/internal/core"
	"scadenze/internal/schedule"
)

var (
	colorBorder = lipgloss.Color("#575653")
	colorText   = lipgloss.Color("#FFFCF0")
	colorAccent = lipgloss.Color("#3AA99F")
	colorGreen  = lipgloss.Color("#879A39")
	colorRed    = lipgloss.Color("#D14D41")
	colorOrange = lipgloss.Color("#DA702C")
	colorBlue   = lipgloss.Color("#4385BE")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle      = lipgloss.NewStyle().Foreground(colorBorder)
	warnStyle     = lipgloss.NewStyle().Foreground(colorOrange)
	incomeStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	expenseStyle  = lipgloss.NewStyle().Foreground(colorRed)
	mixedStyle    = lipgloss.NewStyle().Foreground(colorOrange).Bold(true)
	transferStyle = lipgloss.NewStyle().Foreground(colorBlue)
)

func renderTitle(title string) string {
	return titleStyle.Render(title)
}

// renderTable lays out rows in left-aligned columns. Widths are measured
// with lipgloss.Width so styled cells line up.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-lipgloss.Width(s))
	}

	var b strings.Builder
	b.WriteString(" ")
	for i, h := range headers {
		b.WriteString(" ")
		b.WriteString(headerStyle.Render(pad(h, widths[i])))
	}
	b.WriteString("\n ")
	for _, w := range widths {
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(strings.Repeat("─", w)))
	}
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(" ")
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			b.WriteString(" ")
			b.WriteString(pad(cell, widths[i]))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func styleAmount(kind core.Kind, s string) string {
	switch kind {
	case core.KindIncome:
		return incomeStyle.Render(s)
	case core.KindExpense:
		return expenseStyle.Render(s)
	default:
		return transferStyle.Render(s)
	}
}

func renderOccurrences(occs []core.ScheduledOccurrence) string {
	if len(occs) == 0 {
		return dimStyle.Render("  nothing scheduled") + "\n"
	}
	rows := make([][]string, 0, len(occs))
	for _, o := range occs {
		account := o.AccountLabel
		if account == "" {
			account = o.AccountID
		}
		flags := ""
		if o.IsOverridden {
			flags = "edited"
		}
		if !o.IsRecurring {
			flags = "one-off"
		}
		rows = append(rows, []string{
			o.Date.String(),
			o.Description,
			account,
			styleAmount(o.Kind, core.FormatAmount(o.SignedAmount, o.Currency)),
			flags,
		})
	}
	return renderTable([]string{"Date", "Description", "Account", "Amount", ""}, rows)
}

func renderSummary(sum schedule.Summary, currency string) string {
	format := func(d decimal.Decimal) string { return core.FormatAmount(d, currency) }
	rows := [][]string{
		{"Window", fmt.Sprintf("%s .. %s", sum.From, sum.To)},
		{"Income", incomeStyle.Render(format(sum.Income))},
		{"Expense", expenseStyle.Render(format(sum.Expense))},
		{"Net", format(sum.Net)},
		{"Occurrences", fmt.Sprintf("%d", sum.Count)},
		{"Transfers", fmt.Sprintf("%d", sum.Transfers)},
	}
	s := renderTable([]string{"", ""}, rows)
	if len(sum.Unconverted) > 0 {
		s += warnStyle.Render(fmt.Sprintf("  %d occurrence(s) left out: no rate to %s", len(sum.Unconverted), currency)) + "\n"
	}
	return s
}

// heatCell renders one calendar day: the number of occurrences, coloured by
// what kind of flows fall on it.
func heatCell(a schedule.DayActivity) string {
	total := a.Total()
	if total == 0 {
		return dimStyle.Render(" ·")
	}
	n := fmt.Sprintf("%2d", min(total, 99))
	switch {
	case a.IsMixed():
		return mixedStyle.Render(n)
	case a.IncomeCount > 0:
		return incomeStyle.Render(n)
	case a.ExpenseCount > 0:
		return expenseStyle.Render(n)
	default:
		return transferStyle.Render(n)
	}
}

// renderHeatmap draws the window as a Monday-first calendar, one week per
// line. Days outside [from, to] are left blank.
func renderHeatmap(buckets map[core.Date]schedule.DayActivity, from, to core.Date) string {
	var b strings.Builder
	b.WriteString("            ")
	for _, wd := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		b.WriteString(" ")
		b.WriteString(headerStyle.Render(wd))
	}
	b.WriteString("\n")

	offset := (int(from.Weekday()) + 6) % 7
	weekStart := from.AddDays(-offset)
	for ; !weekStart.After(to); weekStart = weekStart.AddDays(7) {
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(weekStart.String()))
		for i := 0; i < 7; i++ {
			d := weekStart.AddDays(i)
			b.WriteString(" ")
			if d.Before(from) || d.After(to) {
				b.WriteString("  ")
				continue
			}
			b.WriteString(heatCell(buckets[d]))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(strings.Join([]string{
		incomeStyle.Render("income"),
		expenseStyle.Render("expense"),
		mixedStyle.Render("both"),
		transferStyle.Render("transfer"),
	}, dimStyle.Render(" · ")))
	b.WriteString("\n")
	return b.String()
}

func renderRules(rules []core.RecurrenceRule) string {
	if len(rules) == 0 {
		return dimStyle.Render("  no rules") + "\n"
	}
	rows := make([][]string, 0, len(rules))
	for _, r := range rules {
		every := string(r.Frequency)
		if r.Interval > 1 {
			every = fmt.Sprintf("every %d %s", r.Interval, r.Frequency)
		}
		next := r.NextDueDate.String()
		if r.Exhausted {
			next = dimStyle.Render("ended")
		}
		rows = append(rows, []string{
			r.ID,
			r.Description,
			styleAmount(r.Kind, core.FormatAmount(r.Amount, "")),
			every,
			next,
		})
	}
	return renderTable([]string{"ID", "Description", "Amount", "Repeats", "Next due"}, rows)
}


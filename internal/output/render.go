package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"

	"github.com/staybook/staybook-cli/internal/observability"
)

// Palette colors (dark background).
const (
	colorPrimary = "#5FAFFF"
	colorMuted   = "#808080"
	colorText    = "#E4E4E4"
	colorError   = "#FF5F5F"
	colorWarning = "#FFAF00"
	colorSuccess = "#5FD75F"
)

// maxCellWidth caps table cells; longer values are truncated with an ellipsis.
const maxCellWidth = 40

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	// Text styles
	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style

	// Table styles
	Header    lipgloss.Style
	Cell      lipgloss.Style
	CellMuted lipgloss.Style
}

// NewRenderer creates a renderer. Styling is enabled when writing to a TTY,
// or when forceStyled is true, unless NO_COLOR is set.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	width, isTTY := terminalInfo(w)
	styled := (isTTY || forceStyled) && os.Getenv("NO_COLOR") == ""

	r := &Renderer{
		width:  width,
		styled: styled,
	}

	plain := lipgloss.NewStyle()
	r.Summary, r.Muted, r.Data, r.Error, r.Hint = plain, plain, plain, plain, plain
	r.Warning, r.Success, r.Header, r.Cell, r.CellMuted = plain, plain, plain, plain, plain

	if styled {
		lipgloss.SetColorProfile(2) // TrueColor
		r.Summary = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary)).Bold(true)
		r.Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
		r.Data = lipgloss.NewStyle().Foreground(lipgloss.Color(colorText))
		r.Error = lipgloss.NewStyle().Foreground(lipgloss.Color(colorError)).Bold(true)
		r.Hint = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)).Italic(true)
		r.Warning = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning))
		r.Success = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess))
		r.Header = lipgloss.NewStyle().Foreground(lipgloss.Color(colorText)).Bold(true)
		r.Cell = lipgloss.NewStyle().Foreground(lipgloss.Color(colorText))
		r.CellMuted = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	} else {
		lipgloss.SetColorProfile(0) // Ascii
	}

	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(f.Fd()); err == nil && cols >= 40 {
			width = cols
		}
		isTTY = term.IsTerminal(f.Fd())
	}

	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		r.renderBreadcrumbs(&b, resp.Breadcrumbs)
	}

	if stats := extractStats(resp.Meta); stats != nil {
		b.WriteString("\n")
		r.renderStats(&b, stats)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		r.renderObject(b, d)

	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderList(b, d)

	case string:
		b.WriteString(r.Data.Render(d))
		b.WriteString("\n")

	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")

	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)))
		b.WriteString("\n")
	}
}

// Column priority for table rendering (lower = higher priority)
var columnPriority = map[string]int{
	"id":            1,
	"name":          2,
	"hotelName":     2,
	"roomName":      2,
	"fullName":      2,
	"roomType":      3,
	"city":          3,
	"status":        4,
	"rating":        4,
	"checkIn":       5,
	"checkOut":      5,
	"checkInDate":   5,
	"checkOutDate":  5,
	"price":         6,
	"pricePerNight": 6,
	"totalPrice":    6,
	"comment":       7,
	"address":       7,
	"description":   8,
	"createdAt":     9,
	"updatedAt":     9,
}

// Columns to render in muted style
var mutedColumns = map[string]bool{
	"id":        true,
	"createdAt": true,
	"updatedAt": true,
}

// Fields never shown (media, internal links, secrets).
var skipColumns = map[string]bool{
	"images":       true,
	"imageUrl":     true,
	"imageUrls":    true,
	"thumbnail":    true,
	"token":        true,
	"accessToken":  true,
	"refreshToken": true,
	"password":     true,
}

type column struct {
	key      string
	header   string
	priority int
	muted    bool
	width    int
}

func priorityOf(key string) int {
	if p := columnPriority[key]; p != 0 {
		return p
	}
	return 50
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	columns := r.selectColumns(detectColumns(data), data)
	if len(columns) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			if col < len(columns) && columns[col].muted {
				return r.CellMuted
			}
			return r.Cell
		})

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	t.Headers(headers...)

	for _, item := range data {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = ansi.Truncate(formatValue(col.key, item[col.key]), maxCellWidth, "…")
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

func detectColumns(data []map[string]any) []column {
	if len(data) == 0 {
		return nil
	}

	var cols []column
	for key, val := range data[0] {
		if skipColumns[key] {
			continue
		}
		switch val.(type) {
		case map[string]any, []map[string]any, []any:
			continue
		}
		cols = append(cols, column{
			key:      key,
			header:   formatHeader(key),
			priority: priorityOf(key),
			muted:    mutedColumns[key],
		})
	}

	sort.Slice(cols, func(i, j int) bool {
		if cols[i].priority != cols[j].priority {
			return cols[i].priority < cols[j].priority
		}
		return cols[i].key < cols[j].key
	})
	return cols
}

// selectColumns drops the lowest-priority columns until the table fits.
func (r *Renderer) selectColumns(cols []column, data []map[string]any) []column {
	if len(cols) == 0 {
		return cols
	}

	for i := range cols {
		cols[i].width = lipgloss.Width(cols[i].header)
		for _, row := range data {
			if w := lipgloss.Width(formatValue(cols[i].key, row[cols[i].key])); w > cols[i].width {
				cols[i].width = w
			}
		}
		cols[i].width = min(cols[i].width, maxCellWidth)
	}

	const padding = 2
	selected := cols
	for len(selected) > 1 {
		total := 0
		for _, col := range selected {
			total += col.width + padding
		}
		if total <= r.width {
			break
		}
		selected = selected[:len(selected)-1]
	}
	return selected
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	type field struct {
		key      string
		priority int
	}
	var fields []field
	for k, v := range data {
		if skipColumns[k] {
			continue
		}
		if _, nested := v.(map[string]any); nested {
			continue
		}
		fields = append(fields, field{key: k, priority: priorityOf(k)})
	}

	if len(fields) == 0 {
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
		return
	}

	sort.Slice(fields, func(i, j int) bool {
		if fields[i].priority != fields[j].priority {
			return fields[i].priority < fields[j].priority
		}
		return fields[i].key < fields[j].key
	})

	maxLen := 0
	for _, f := range fields {
		maxLen = max(maxLen, len(formatHeader(f.key)))
	}

	for _, f := range fields {
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, formatHeader(f.key)))
		style := r.Data
		if mutedColumns[f.key] {
			style = r.CellMuted
		}
		b.WriteString(label + style.Render(formatValue(f.key, data[f.key])) + "\n")
	}
}

func (r *Renderer) renderList(b *strings.Builder, data []any) {
	for _, item := range data {
		b.WriteString(r.Data.Render("• " + formatCell(item)))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderBreadcrumbs(b *strings.Builder, crumbs []Breadcrumb) {
	b.WriteString(r.Muted.Render("Next:"))
	b.WriteString("\n")
	for _, bc := range crumbs {
		cmd := r.Muted.Render("  " + bc.Cmd)
		if bc.Description != "" {
			cmd += r.Muted.Render("  # " + bc.Description)
		}
		b.WriteString(cmd + "\n")
	}
}

// renderStats renders session statistics in a compact one-liner.
func (r *Renderer) renderStats(b *strings.Builder, stats map[string]any) {
	parts := observability.SessionMetricsFromMap(stats).FormatParts()
	if len(parts) > 0 {
		b.WriteString(r.Muted.Render("Stats: "+strings.Join(parts, " | ")) + "\n")
	}
}

// formatHeader turns "pricePerNight" or "check_in" into "Price Per Night" / "Check In".
func formatHeader(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, c := range key {
		switch {
		case c == '_' || c == '-' || c == ' ':
			flush()
		case unicode.IsUpper(c) && i > 0:
			flush()
			cur = append(cur, c)
		default:
			cur = append(cur, c)
		}
	}
	flush()

	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case int, int64:
		return fmt.Sprintf("%d", v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if name, ok := m["name"].(string); ok {
					items = append(items, name)
					continue
				}
			}
			items = append(items, formatCell(item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// isDateKey matches createdAt, checkIn, checkOutDate, created_at and similar.
func isDateKey(key string) bool {
	k := strings.ToLower(key)
	switch {
	case strings.HasSuffix(key, "At"), strings.HasSuffix(k, "_at"), strings.HasSuffix(k, "date"):
		return true
	case strings.HasPrefix(k, "checkin"), strings.HasPrefix(k, "checkout"), strings.HasPrefix(k, "check_"):
		return true
	}
	return false
}

// formatValue formats date fields readably and everything else via formatCell.
// Stay dates arrive as yyyy-MM-dd or dd-MM-yyyy; timestamps as RFC 3339.
func formatValue(key string, val any) string {
	str, ok := val.(string)
	if !ok || str == "" || !isDateKey(key) {
		return formatCell(val)
	}

	for _, layout := range []string{"2006-01-02", "02-01-2006"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t.Format("Mon, Jan 2 2006")
		}
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", str)
		if err != nil {
			return str
		}
	}

	diff := time.Since(t)
	switch {
	case diff < 0:
		return t.Format("Jan 2, 2006 15:04")
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// extractStats pulls stats from response meta if present.
func extractStats(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	stats, _ := meta["stats"].(map[string]any)
	return stats
}

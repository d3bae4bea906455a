// Package display provides terminal formatting for transformar output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/transformar/console/internal/types"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	Warn     = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))

	Primary = lipgloss.NewStyle().Foreground(lipgloss.Color("#b45309")).Bold(true)
	Current = lipgloss.NewStyle().Foreground(lipgloss.Color("#fffbeb")).Background(lipgloss.Color("#b45309")).Bold(true)

	headerCell = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	bodyCell   = lipgloss.NewStyle().Padding(0, 1)
)

// sourceColors gives each source a badge color.
var sourceColors = map[types.SourceKind]string{
	types.SourceDocument: "#2563eb",
	types.SourceText:     "#6b7280",
	types.SourceGmail:    "#dc2626",
	types.SourceOutlook:  "#0284c7",
	types.SourceWhatsApp: "#16a34a",
	types.SourceTelegram: "#0ea5e9",
}

// SourceBadge returns the styled display name of a source.
func SourceBadge(k types.SourceKind) string {
	color, ok := sourceColors[k]
	if !ok {
		return string(k)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(k.Title())
}

// Steps renders the compact progress line "Paso 1 ─ 2 ─ 3" with current
// highlighted.
func Steps(current int) string {
	parts := make([]string, 0, 3)
	for i := 1; i <= 3; i++ {
		n := fmt.Sprintf(" %d ", i)
		if i == current {
			parts = append(parts, Current.Render(n))
		} else {
			parts = append(parts, Dim.Render(n))
		}
	}
	return Muted.Render("Paso ") + strings.Join(parts, Muted.Render(" ─ "))
}

// StatusDot returns a colored dot for a connection or run status.
func StatusDot(status string) string {
	switch status {
	case "connected", types.RunCompleted:
		return Success.Render("●")
	case "failed":
		return ErrStyle.Render("●")
	case "pending":
		return Warn.Render("○")
	default:
		return Dim.Render("○")
	}
}

// MessageLine formats one entry of a message listing.
func MessageLine(i int, m types.MessageSummary) string {
	clip := ""
	if m.HasAttachments || len(m.Media) > 0 {
		clip = " " + Dim.Render("📎")
	}
	date := ""
	if m.Date != "" {
		date = "  " + Dim.Render(TimeAgo(m.Date))
	}
	return fmt.Sprintf("  %s %s  %s%s%s",
		Muted.Render(fmt.Sprintf("%2d.", i)),
		Dim.Render(Truncate(m.ID, 16)),
		Truncate(m.Label(), 60),
		clip,
		date,
	)
}

// AttachmentNoun is the picker label of an attachment for the source family.
func AttachmentNoun(k types.SourceKind) string {
	if k.Family() == types.FamilyChat {
		return "Archivo"
	}
	return "Adjunto"
}

// ChannelLabels returns the names of the text and attachment channels.
func ChannelLabels(k types.SourceKind) (string, string) {
	if k.Family() == types.FamilyChat {
		return "Texto", "Multimedia"
	}
	return "Cuerpo", "Adjunto"
}

// AttachmentName is the filename of a, or its picker label when unnamed.
func AttachmentName(k types.SourceKind, i int, a types.Attachment) string {
	if a.Filename != "" {
		return a.Filename
	}
	return fmt.Sprintf("%s #%d", AttachmentNoun(k), i+1)
}

// AttachmentLine formats attachment i with its type and size.
func AttachmentLine(k types.SourceKind, i int, a types.Attachment) string {
	meta := []string{}
	if a.MimeType != "" {
		meta = append(meta, a.MimeType)
	}
	if a.Size > 0 {
		meta = append(meta, fmt.Sprintf("%d bytes", a.Size))
	}
	line := fmt.Sprintf("[%d] %s", i, AttachmentName(k, i, a))
	if len(meta) > 0 {
		line += "  " + Dim.Render(strings.Join(meta, " · "))
	}
	return line
}

// Table renders rows under headers with the normal border.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Muted).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
	return t.String()
}

// TimeAgo formats an ISO date string as a relative time.
func TimeAgo(isoDate string) string {
	if isoDate == "" {
		return ""
	}

	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05", time.RFC1123Z} {
		t, err = time.Parse(layout, isoDate)
		if err == nil {
			break
		}
	}
	if err != nil {
		return isoDate[:min(10, len(isoDate))]
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "recién"
	case d < time.Hour:
		return fmt.Sprintf("hace %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("hace %dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("hace %dd", int(d.Hours()/24))
	default:
		return t.Format("02/01/2006")
	}
}

// Truncate shortens a string to maxLen runes, adding ellipsis if needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// PreviewLimit is the number of body characters shown for a message.
const PreviewLimit = 3000

// Preview returns at most maxLen runes of s, or the placeholder when s is blank.
func Preview(s string, maxLen int) string {
	if strings.TrimSpace(s) == "" {
		return "(sin texto)"
	}
	r := []rune(s)
	if len(r) > maxLen {
		return string(r[:maxLen])
	}
	return s
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Success.Render("✓") + " " + msg)
}

// ErrorMsg prints a red X + message to stderr.
func ErrorMsg(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, ErrStyle.Render("✗")+" "+msg)
}

// Notice prints an amber notice line.
func Notice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(Warn.Render("!") + " " + msg)
}

// Header prints a section header.
func Header(title string) {
	fmt.Println(Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(title string) {
	fmt.Println(Muted.Render(title))
}

package tui

import (
	"fmt"
	"strings"

	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/types"
	"github.com/transformar/console/internal/wizard"
)

func (m Model) View() string {
	if m.run != nil || m.cancelled {
		return ""
	}
	st := m.ctl.Snapshot()

	var b strings.Builder
	b.WriteString("\n" + display.Steps(st.Step.Number()) + "\n\n")

	switch m.screen {
	case screenSource:
		m.viewSources(&b)
	case screenFile:
		b.WriteString(display.Bold.Render(st.Source.Title()) + "\n\n")
		b.WriteString(m.path.View() + "\n")
	case screenText:
		b.WriteString(display.Bold.Render(st.Source.Title()) + "\n\n")
		b.WriteString(m.text.View() + "\n")
	case screenMessages:
		m.viewMessages(&b, st)
	case screenChannel:
		m.viewChannel(&b, st)
	case screenTemplate:
		m.viewTemplates(&b)
	}

	if m.busy != "" {
		b.WriteString("\n" + m.spinner.View() + " " + m.busy + "\n")
	}
	if m.notice != "" {
		b.WriteString("\n" + display.Warn.Render("!") + " " + m.notice + "\n")
	}
	if m.alert != "" {
		b.WriteString("\n" + display.ErrStyle.Render("✗ "+m.alert) + "\n")
	}
	b.WriteString("\n" + display.Dim.Render(m.help(st)) + "\n")
	return b.String()
}

func mark(on bool) string {
	if on {
		return display.Primary.Render("›") + " "
	}
	return "  "
}

func (m Model) viewSources(b *strings.Builder) {
	b.WriteString(display.Bold.Render("Elegí una fuente") + "\n\n")
	for i, k := range types.AllSources {
		fmt.Fprintf(b, "%s%-24s %s\n", mark(i == m.cursor), display.SourceBadge(k), display.Dim.Render(k.Hint()))
	}
}

func (m Model) viewMessages(b *strings.Builder, st wizard.State) {
	b.WriteString(display.SourceBadge(st.Source) + "\n\n")
	switch {
	case st.NeedsConnection:
		fmt.Fprintf(b, "Conectá tu cuenta de %s para continuar.\n", st.Source.Title())
	case st.LoadingList:
	case len(st.Messages) == 0:
		fmt.Fprintf(b, "No hay mensajes en %s.\n", st.Source.Title())
	default:
		for i, msg := range st.Messages {
			b.WriteString(mark(i == m.cursor) + strings.TrimPrefix(display.MessageLine(i+1, msg), "  ") + "\n")
		}
	}
}

func (m Model) viewChannel(b *strings.Builder, st wizard.State) {
	if st.Detail == nil {
		return
	}
	textLabel, attLabel := display.ChannelLabels(st.Source)
	b.WriteString(display.Bold.Render(st.Source.Title()+" · "+st.MessageID) + "\n\n")
	b.WriteString(display.Muted.Render(textLabel) + "\n")
	for _, line := range strings.Split(display.Preview(st.Detail.Text, display.PreviewLimit), "\n") {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("\n" + display.Muted.Render(attLabel) + "\n")
	if len(st.Detail.Attachments) == 0 {
		b.WriteString("  " + display.Dim.Render("(sin adjuntos)") + "\n")
	}
	for i, a := range st.Detail.Attachments {
		b.WriteString("  " + display.AttachmentLine(st.Source, i, a) + "\n")
	}

	b.WriteString("\n" + display.Bold.Render("Usar") + "\n")
	for i, o := range channelOptions(st.Source, st.Detail) {
		label := o.label
		if inUse(st, o) {
			label += " " + display.Dim.Render("(en uso)")
		}
		b.WriteString(mark(i == m.cursor) + label + "\n")
	}
}

func (m Model) viewTemplates(b *strings.Builder) {
	b.WriteString(display.Bold.Render("Elegí una plantilla") + "\n\n")
	if m.busy != "" && len(m.templates) == 0 {
		return
	}
	if len(m.templates) == 0 {
		b.WriteString(display.Dim.Render("No hay plantillas disponibles. Ingresá el id.") + "\n")
		b.WriteString(m.tplID.View() + "\n")
		return
	}
	for i, t := range m.templates {
		line := display.Bold.Render(t.ID) + "  " + t.Name
		if t.Description != nil && *t.Description != "" {
			line += "  " + display.Dim.Render(display.Truncate(*t.Description, 50))
		}
		b.WriteString(mark(i == m.cursor) + line + "\n")
	}
}

func (m Model) help(st wizard.State) string {
	switch m.screen {
	case screenSource:
		return "↑/↓ elegir · enter continuar · esc salir"
	case screenFile:
		return "enter continuar · esc volver"
	case screenText:
		return "ctrl+s continuar · esc volver"
	case screenMessages:
		if st.NeedsConnection {
			return "c conectar · r reintentar · esc volver"
		}
		return "↑/↓ elegir · enter abrir · r actualizar · esc volver"
	case screenTemplate:
		return "↑/↓ elegir · enter procesar · esc volver"
	default:
		return "↑/↓ elegir · enter continuar · esc volver"
	}
}

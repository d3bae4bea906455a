// Package tui runs the wizard controller as an interactive bubbletea program.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/transformar/console/internal/api"
	"github.com/transformar/console/internal/display"
	"github.com/transformar/console/internal/types"
	"github.com/transformar/console/internal/wizard"
)

// ProcessingLabel is shown while a submission is in flight.
const ProcessingLabel = "Procesando documento..."

const textPlaceholder = "Pegá el contenido aquí..."

type screen int

const (
	screenSource screen = iota
	screenFile
	screenText
	screenMessages
	screenChannel
	screenTemplate
)

// Hooks connect the model to persistence and the filesystem.
type Hooks struct {
	// Submit submits ctl and persists the outcome.
	Submit func(ctx context.Context, ctl *wizard.Controller) (*types.Run, error)
	// ReadFile loads the document at path.
	ReadFile func(path string) (api.Upload, error)
	// Connect marks an integration as pending and returns where to authorize it.
	Connect func(k types.SourceKind) (string, error)
	// Connected is called after a message of k was opened. Optional.
	Connected func(k types.SourceKind)
}

// Async results of controller calls.
type (
	sourceMsg struct {
		source types.SourceKind
		err    error
	}
	listingMsg   struct{ err error }
	selectMsg    struct{ err error }
	channelMsg   struct{ err error }
	templatesMsg struct {
		templates []types.Template
		err       error
	}
	submitMsg struct {
		run *types.Run
		err error
	}
)

// Model is the bubbletea model of the three-step wizard.
type Model struct {
	ctx   context.Context
	ctl   *wizard.Controller
	hooks Hooks

	screen screen
	cursor int
	busy   string
	alert  string
	notice string

	path    textinput.Model
	tplID   textinput.Model
	text    textarea.Model
	spinner spinner.Model

	templates []types.Template
	run       *types.Run
	cancelled bool
}

// New returns a model at the source screen.
func New(ctx context.Context, ctl *wizard.Controller, hooks Hooks) Model {
	path := textinput.New()
	path.Prompt = "Archivo: "
	path.Placeholder = "factura.pdf"

	tplID := textinput.New()
	tplID.Prompt = "Plantilla: "
	tplID.Placeholder = "id de la plantilla"

	text := textarea.New()
	text.Placeholder = textPlaceholder
	text.ShowLineNumbers = false
	text.SetWidth(72)
	text.SetHeight(8)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = display.Primary

	return Model{
		ctx:     ctx,
		ctl:     ctl,
		hooks:   hooks,
		path:    path,
		tplID:   tplID,
		text:    text,
		spinner: sp,
	}
}

// Run returns the submitted run, or nil when the wizard was left early.
func (m Model) Run() *types.Run { return m.run }

// Cancelled reports whether the user quit before submitting.
func (m Model) Cancelled() bool { return m.cancelled }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sourceMsg:
		m.busy = ""
		m.alert = alertFor(msg.err)
		m.screen = inputScreen(msg.source)
		m.cursor = 0
		cmd := m.focusInput()
		return m, cmd

	case listingMsg:
		m.busy = ""
		m.alert = alertFor(msg.err)
		m.cursor = 0
		return m, nil

	case selectMsg:
		m.busy = ""
		if msg.err != nil {
			m.alert = alertFor(msg.err)
			return m, nil
		}
		m.alert = ""
		if m.hooks.Connected != nil {
			m.hooks.Connected(m.ctl.Snapshot().Source)
		}
		m.screen = screenChannel
		m.cursor = m.channelCursor()
		return m, nil

	case channelMsg:
		m.busy = ""
		if msg.err != nil {
			m.alert = alertFor(msg.err)
			return m, nil
		}
		return m.toTemplates()

	case templatesMsg:
		m.busy = ""
		m.alert = alertFor(msg.err)
		m.templates = msg.templates
		m.cursor = 0
		if len(m.templates) == 0 {
			cmd := m.tplID.Focus()
			return m, cmd
		}
		return m, nil

	case submitMsg:
		m.busy = ""
		if msg.err == nil {
			m.run = msg.run
			return m, tea.Quit
		}
		m.alert = alertFor(msg.err)
		if errors.Is(msg.err, wizard.ErrInputRequired) {
			m.screen = inputScreen(m.ctl.Snapshot().Source)
			m.cursor = 0
			cmd := m.focusInput()
			return m, cmd
		}
		return m, nil
	}
	return m.updateInputs(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.cancelled = true
		return m, tea.Quit
	}
	if m.busy != "" {
		return m, nil
	}
	if msg.Type == tea.KeyEsc {
		return m.back()
	}

	switch m.screen {
	case screenSource:
		return m.keySource(msg)
	case screenFile:
		return m.keyFile(msg)
	case screenText:
		return m.keyText(msg)
	case screenMessages:
		return m.keyMessages(msg)
	case screenChannel:
		return m.keyChannel(msg)
	case screenTemplate:
		return m.keyTemplate(msg)
	}
	return m, nil
}

// move handles list navigation over n entries.
func (m *Model) move(msg tea.KeyMsg, n int) bool {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return true
	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}
		return true
	}
	return false
}

// start marks the model busy and runs work in the background.
func (m Model) start(label string, work tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = label
	return m, tea.Batch(work, m.spinner.Tick)
}

func (m Model) keySource(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.move(msg, len(types.AllSources)) || msg.Type != tea.KeyEnter {
		return m, nil
	}
	k := types.AllSources[m.cursor]
	m.alert, m.notice = "", ""
	ctx, ctl := m.ctx, m.ctl
	return m.start("Cargando...", func() tea.Msg {
		return sourceMsg{source: k, err: ctl.PickSource(ctx, k)}
	})
}

func (m Model) keyFile(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.path, cmd = m.path.Update(msg)
		return m, cmd
	}
	path := strings.TrimSpace(m.path.Value())
	if path == "" {
		m.alert = wizard.UserMessage(wizard.ErrNoFile)
		return m, nil
	}
	up, err := m.hooks.ReadFile(path)
	if err != nil {
		m.alert = wizard.UserMessage(err)
		return m, nil
	}
	if err := m.ctl.SelectFile(up); err != nil {
		m.alert = alertFor(err)
		return m, nil
	}
	m.alert = ""
	m.path.Blur()
	return m.toTemplates()
}

func (m Model) keyText(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyCtrlS {
		var cmd tea.Cmd
		m.text, cmd = m.text.Update(msg)
		return m, cmd
	}
	v := m.text.Value()
	if err := m.ctl.SetText(v); err != nil {
		m.alert = alertFor(err)
		return m, nil
	}
	if strings.TrimSpace(v) == "" {
		m.alert = wizard.UserMessage(wizard.ErrNoText)
		return m, nil
	}
	m.alert = ""
	m.text.Blur()
	return m.toTemplates()
}

func (m Model) keyMessages(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.ctl.Snapshot()
	if st.NeedsConnection {
		switch msg.String() {
		case "c":
			url, err := m.hooks.Connect(st.Source)
			if err != nil {
				m.alert = alertFor(err)
				return m, nil
			}
			m.notice = "Autorizá el acceso en: " + url
		case "r":
			return m.refresh()
		}
		return m, nil
	}

	if m.move(msg, len(st.Messages)) {
		return m, nil
	}
	switch msg.String() {
	case "r":
		return m.refresh()
	case "enter":
		if m.cursor >= len(st.Messages) {
			m.alert = wizard.UserMessage(wizard.ErrNoMessage)
			return m, nil
		}
		id := st.Messages[m.cursor].ID
		m.alert = ""
		ctx, ctl := m.ctx, m.ctl
		return m.start("Cargando mensaje...", func() tea.Msg {
			return selectMsg{err: ctl.SelectMessage(ctx, id)}
		})
	}
	return m, nil
}

func (m Model) refresh() (tea.Model, tea.Cmd) {
	m.alert = ""
	ctx, ctl := m.ctx, m.ctl
	return m.start("Actualizando...", func() tea.Msg {
		return listingMsg{err: ctl.RefreshMessages(ctx)}
	})
}

// option is one channel choice; attachment is -1 for the body text.
type option struct {
	label      string
	attachment int
}

func channelOptions(k types.SourceKind, d *types.MessageDetail) []option {
	if d == nil {
		return nil
	}
	textLabel, _ := display.ChannelLabels(k)
	var opts []option
	if d.HasText() {
		opts = append(opts, option{label: textLabel, attachment: -1})
	}
	for i, a := range d.Attachments {
		opts = append(opts, option{label: display.AttachmentName(k, i, a), attachment: i})
	}
	return opts
}

// channelCursor is the position of the channel currently in use.
func (m Model) channelCursor() int {
	st := m.ctl.Snapshot()
	for i, o := range channelOptions(st.Source, st.Detail) {
		if inUse(st, o) {
			return i
		}
	}
	return 0
}

func inUse(st wizard.State, o option) bool {
	if o.attachment < 0 {
		return st.Channel == wizard.ChannelText
	}
	return st.Channel == wizard.ChannelAttachment && st.AttachmentIndex == o.attachment
}

func (m Model) keyChannel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.ctl.Snapshot()
	opts := channelOptions(st.Source, st.Detail)
	if m.move(msg, len(opts)) || msg.Type != tea.KeyEnter {
		return m, nil
	}
	if len(opts) == 0 {
		m.alert = wizard.UserMessage(wizard.ErrNoContent)
		return m, nil
	}
	o := opts[m.cursor]
	if inUse(st, o) {
		return m.toTemplates()
	}
	if o.attachment < 0 {
		if err := m.ctl.UseText(); err != nil {
			m.alert = alertFor(err)
			return m, nil
		}
		return m.toTemplates()
	}
	i := o.attachment
	ctx, ctl := m.ctx, m.ctl
	return m.start("Descargando adjunto...", func() tea.Msg {
		return channelMsg{err: ctl.UseAttachment(ctx, i)}
	})
}

func (m Model) toTemplates() (tea.Model, tea.Cmd) {
	m.screen = screenTemplate
	m.cursor = 0
	ctx, ctl := m.ctx, m.ctl
	return m.start("Cargando plantillas...", func() tea.Msg {
		tpls, err := ctl.LoadTemplates(ctx)
		return templatesMsg{templates: tpls, err: err}
	})
}

func (m Model) keyTemplate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.templates) == 0 {
		if msg.Type == tea.KeyEnter {
			return m.submit(m.tplID.Value())
		}
		var cmd tea.Cmd
		m.tplID, cmd = m.tplID.Update(msg)
		return m, cmd
	}
	if m.move(msg, len(m.templates)) || msg.Type != tea.KeyEnter {
		return m, nil
	}
	return m.submit(m.templates[m.cursor].ID)
}

func (m Model) submit(id string) (tea.Model, tea.Cmd) {
	m.ctl.SelectTemplate(id)
	m.alert = ""
	ctx, ctl, submit := m.ctx, m.ctl, m.hooks.Submit
	return m.start(ProcessingLabel, func() tea.Msg {
		run, err := submit(ctx, ctl)
		return submitMsg{run: run, err: err}
	})
}

func (m Model) back() (tea.Model, tea.Cmd) {
	m.alert, m.notice = "", ""
	st := m.ctl.Snapshot()
	switch m.screen {
	case screenSource:
		m.cancelled = true
		return m, tea.Quit
	case screenChannel:
		m.screen = screenMessages
		m.cursor = 0
		return m, nil
	case screenTemplate:
		m.tplID.Blur()
		m.screen = inputScreen(st.Source)
		if m.screen == screenMessages && st.Detail != nil {
			m.screen = screenChannel
			m.cursor = m.channelCursor()
			return m, nil
		}
		m.cursor = 0
		cmd := m.focusInput()
		return m, cmd
	default:
		m.path.Blur()
		m.text.Blur()
		m.screen = screenSource
		m.cursor = sourceIndex(st.Source)
		return m, nil
	}
}

func (m *Model) focusInput() tea.Cmd {
	switch m.screen {
	case screenFile:
		return m.path.Focus()
	case screenText:
		return m.text.Focus()
	}
	return nil
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case screenFile:
		m.path, cmd = m.path.Update(msg)
	case screenText:
		m.text, cmd = m.text.Update(msg)
	case screenTemplate:
		if len(m.templates) == 0 {
			m.tplID, cmd = m.tplID.Update(msg)
		}
	}
	return m, cmd
}

func inputScreen(k types.SourceKind) screen {
	switch k.Family() {
	case types.FamilyUpload:
		return screenFile
	case types.FamilyText:
		return screenText
	default:
		return screenMessages
	}
}

func sourceIndex(k types.SourceKind) int {
	for i, s := range types.AllSources {
		if s == k {
			return i
		}
	}
	return 0
}

// alertFor maps err to the alert line. Superseded results are silent.
func alertFor(err error) string {
	if err == nil || errors.Is(err, wizard.ErrSuperseded) {
		return ""
	}
	return wizard.UserMessage(err)
}

// Package wizard drives the three-step input flow of the console: pick a
// source, provide its input, pick a template, then submit one processing
// request.
//
// The Controller is safe for concurrent use. Network calls run without the
// lock held; listing and detail fetches carry a generation number so a slow
// response that was overtaken by a newer one is dropped instead of applied.
package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/transformar/console/internal/api"
	"github.com/transformar/console/internal/types"
)

// Step is the furthest panel unlocked in the wizard.
type Step int

// Step constants, in flow order.
const (
	StepSource Step = iota + 1
	StepInput
	StepTemplate
)

func (s Step) String() string {
	switch s {
	case StepSource:
		return "SOURCE"
	case StepInput:
		return "INPUT"
	case StepTemplate:
		return "TEMPLATE"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// Number returns the 1-based position of the step.
func (s Step) Number() int { return int(s) }

// Channel is the part of a message used as processing input.
type Channel string

// Channel constants.
const (
	ChannelNone       Channel = ""
	ChannelText       Channel = "text"
	ChannelAttachment Channel = "attachment"
)

// Backend is the subset of the processing API the wizard uses.
type Backend interface {
	ListTemplates(ctx context.Context) ([]types.Template, error)
	IntegrationStatus(ctx context.Context, source types.SourceKind) (bool, error)
	ListMessages(ctx context.Context, source types.SourceKind, limit int) ([]types.MessageSummary, error)
	GetMessage(ctx context.Context, source types.SourceKind, id string) (*types.MessageDetail, error)
	DownloadMedia(ctx context.Context, source types.SourceKind, id string) (*api.Blob, error)
	ProcessDocument(ctx context.Context, templateID string, up api.Upload) (*api.ProcessResponse, error)
	Process(ctx context.Context, req api.ProcessRequest) (*api.ProcessResponse, error)
}

// state is the mutable wizard state. Guarded by Controller.mu.
type state struct {
	step       Step
	source     types.SourceKind
	templateID string
	templates  []types.Template

	file *api.Upload
	text string

	messages        []types.MessageSummary
	needsConnection bool
	messageID       string
	detail          *types.MessageDetail
	channel         Channel
	attachmentIndex int
	blob            *api.Blob
}

// clearInput drops every per-source input.
func (st *state) clearInput() {
	st.file = nil
	st.text = ""
	st.messages = nil
	st.needsConnection = false
	st.clearSelection()
}

func (st *state) clearSelection() {
	st.messageID = ""
	st.detail = nil
	st.channel = ChannelNone
	st.attachmentIndex = 0
	st.blob = nil
}

func (st *state) advance(to Step) {
	if st.step < to {
		st.step = to
	}
}

// State is a read-only snapshot of the wizard.
type State struct {
	Step            Step
	Source          types.SourceKind
	TemplateID      string
	Templates       []types.Template
	FileName        string
	Text            string
	Messages        []types.MessageSummary
	NeedsConnection bool
	MessageID       string
	Detail          *types.MessageDetail
	Channel         Channel
	AttachmentIndex int
	MediaReady      bool
	LoadingList     bool
	LoadingDetail   bool
	Submitting      bool
	InputReady      bool
	Ready           bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithListLimit sets the number of messages fetched per listing.
func WithListLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithClock sets the time source stamped on runs.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller is the wizard state machine.
type Controller struct {
	backend Backend
	logger  *slog.Logger
	limit   int
	now     func() time.Time

	mu            sync.Mutex
	st            state
	listGen       uint64
	detailGen     uint64
	loadingList   bool
	loadingDetail bool
	submitting    bool
}

// New returns a Controller at the SOURCE step.
func New(b Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: b,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		limit:   api.DefaultListLimit,
		now:     time.Now,
		st:      state{step: StepSource},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.st
	s := State{
		Step:            st.step,
		Source:          st.source,
		TemplateID:      st.templateID,
		Templates:       append([]types.Template(nil), st.templates...),
		Text:            st.text,
		Messages:        append([]types.MessageSummary(nil), st.messages...),
		NeedsConnection: st.needsConnection,
		MessageID:       st.messageID,
		Detail:          st.detail,
		Channel:         st.channel,
		AttachmentIndex: st.attachmentIndex,
		MediaReady:      st.blob != nil,
		LoadingList:     c.loadingList,
		LoadingDetail:   c.loadingDetail,
		Submitting:      c.submitting,
	}
	if st.file != nil {
		s.FileName = st.file.Name
	}
	s.InputReady = c.inputErrLocked() == nil
	s.Ready = s.InputReady && st.templateID != ""
	return s
}

// Ready reports whether Submit would issue a request.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputErrLocked() == nil && c.st.templateID != ""
}

func (c *Controller) inputErrLocked() error {
	h := handlerFor(c.st.source)
	if h == nil {
		return ErrNoSource
	}
	return h.missingInput(&c.st)
}

// PickSource selects a source, clears all input of the previous one and
// unlocks the INPUT step. Messaging sources then load their listing, gated on
// the integration being connected.
func (c *Controller) PickSource(ctx context.Context, s types.SourceKind) error {
	if !types.IsValidSource(string(s)) {
		return fmt.Errorf("invalid source %q", s)
	}

	c.mu.Lock()
	c.st.source = s
	c.st.clearInput()
	c.st.step = StepInput
	// In-flight fetches for the previous source are now stale.
	c.listGen++
	c.detailGen++
	c.loadingList = false
	c.loadingDetail = false
	if !s.IsMessaging() {
		c.mu.Unlock()
		c.logger.Debug("source picked", "source", s)
		return nil
	}
	gen := c.beginListingLocked()
	c.mu.Unlock()

	c.logger.Debug("source picked", "source", s)
	return c.fetchListing(ctx, gen, s)
}

// RefreshMessages reloads the listing of the current messaging source.
func (c *Controller) RefreshMessages(ctx context.Context) error {
	c.mu.Lock()
	if !c.st.source.IsMessaging() {
		c.mu.Unlock()
		return ErrWrongSource
	}
	if c.loadingList {
		c.mu.Unlock()
		return ErrBusy
	}
	gen := c.beginListingLocked()
	source := c.st.source
	c.mu.Unlock()
	return c.fetchListing(ctx, gen, source)
}

// beginListingLocked marks a listing as in flight and returns its generation.
func (c *Controller) beginListingLocked() uint64 {
	c.listGen++
	c.loadingList = true
	return c.listGen
}

func (c *Controller) fetchListing(ctx context.Context, gen uint64, source types.SourceKind) error {
	connected, err := c.backend.IntegrationStatus(ctx, source)
	if err == nil && connected {
		var msgs []types.MessageSummary
		msgs, err = c.backend.ListMessages(ctx, source, c.limit)
		if err == nil {
			return c.applyListing(gen, source, msgs, false)
		}
		err = fmt.Errorf("list %s messages: %w", source, err)
	} else if err == nil {
		return c.applyListing(gen, source, nil, true)
	} else {
		err = fmt.Errorf("check %s integration: %w", source, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.listGen {
		return ErrSuperseded
	}
	c.loadingList = false
	c.logger.Warn("listing failed", "source", source, "error", err)
	return err
}

func (c *Controller) applyListing(gen uint64, source types.SourceKind, msgs []types.MessageSummary, disconnected bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.listGen || source != c.st.source {
		c.logger.Debug("dropping stale listing", "source", source, "generation", gen)
		return ErrSuperseded
	}
	c.loadingList = false
	c.st.messages = msgs
	c.st.needsConnection = disconnected
	c.st.clearSelection()
	if disconnected {
		c.logger.Info("integration not connected", "source", source)
	}
	return nil
}

// SelectMessage loads the detail of a message, applies the default channel
// and unlocks the TEMPLATE step. Chat attachments chosen by default are
// downloaded before the selection is applied.
func (c *Controller) SelectMessage(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrNoMessage
	}

	c.mu.Lock()
	source := c.st.source
	h := handlerFor(source)
	if !source.IsMessaging() {
		c.mu.Unlock()
		return ErrWrongSource
	}
	var summary *types.MessageSummary
	for i := range c.st.messages {
		if c.st.messages[i].ID == id {
			m := c.st.messages[i]
			summary = &m
			break
		}
	}
	c.detailGen++
	gen := c.detailGen
	c.loadingDetail = true
	c.mu.Unlock()

	detail, err := c.loadDetail(ctx, source, id, summary)
	var (
		channel Channel
		blob    *api.Blob
	)
	if err == nil {
		channel = h.defaultChannel(detail)
		if channel == ChannelAttachment && h.downloadsMedia() {
			blob, err = c.download(ctx, source, detail.Attachments[0])
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.detailGen || source != c.st.source {
		c.logger.Debug("dropping stale detail", "source", source, "message", id, "generation", gen)
		return ErrSuperseded
	}
	c.loadingDetail = false
	if err != nil {
		c.logger.Warn("message selection failed", "source", source, "message", id, "error", err)
		return err
	}

	c.st.messageID = id
	c.st.detail = detail
	c.st.channel = channel
	c.st.attachmentIndex = 0
	c.st.blob = blob
	c.st.advance(StepTemplate)
	return nil
}

// loadDetail takes chat details from the listing when it carries them.
func (c *Controller) loadDetail(ctx context.Context, source types.SourceKind, id string, summary *types.MessageSummary) (*types.MessageDetail, error) {
	if source.Family() == types.FamilyChat && summary != nil {
		if d := summary.InlineDetail(); d != nil {
			return d, nil
		}
	}
	d, err := c.backend.GetMessage(ctx, source, id)
	if err != nil {
		return nil, fmt.Errorf("get %s message %s: %w", source, id, err)
	}
	return d, nil
}

// download fetches an attachment binary. Attachments known only by filename
// have nothing to download and return nil.
func (c *Controller) download(ctx context.Context, source types.SourceKind, a types.Attachment) (*api.Blob, error) {
	if a.ID == "" {
		return nil, nil
	}
	blob, err := c.backend.DownloadMedia(ctx, source, a.ID)
	if err != nil {
		return nil, fmt.Errorf("download %s media %s: %w", source, a.ID, err)
	}
	if a.Filename != "" {
		blob.Name = a.Filename
	}
	if blob.MimeType == "" {
		blob.MimeType = a.MimeType
	}
	return blob, nil
}

// UseText switches the selected message to its body text.
func (c *Controller) UseText() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.st.source.IsMessaging() {
		return ErrWrongSource
	}
	if c.loadingDetail {
		return ErrBusy
	}
	if c.st.detail == nil {
		return ErrNoMessage
	}
	if !c.st.detail.HasText() {
		return ErrNoChannel
	}
	c.detailGen++
	c.st.channel = ChannelText
	c.st.blob = nil
	return nil
}

// UseAttachment switches the selected message to attachment i, downloading
// it first for chat sources.
func (c *Controller) UseAttachment(ctx context.Context, i int) error {
	c.mu.Lock()
	source := c.st.source
	h := handlerFor(source)
	if !source.IsMessaging() {
		c.mu.Unlock()
		return ErrWrongSource
	}
	if c.loadingDetail {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.st.detail == nil {
		c.mu.Unlock()
		return ErrNoMessage
	}
	if i < 0 || i >= len(c.st.detail.Attachments) {
		c.mu.Unlock()
		return ErrNoChannel
	}
	att := c.st.detail.Attachments[i]
	msgID := c.st.messageID
	c.detailGen++
	gen := c.detailGen
	c.loadingDetail = h.downloadsMedia()
	c.mu.Unlock()

	var blob *api.Blob
	if h.downloadsMedia() {
		var err error
		if blob, err = c.download(ctx, source, att); err != nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			if gen != c.detailGen {
				return ErrSuperseded
			}
			c.loadingDetail = false
			c.logger.Warn("attachment download failed", "source", source, "message", msgID, "error", err)
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.detailGen || c.st.messageID != msgID {
		return ErrSuperseded
	}
	c.loadingDetail = false
	c.st.channel = ChannelAttachment
	c.st.attachmentIndex = i
	c.st.blob = blob
	return nil
}

// SetText records the free text. Non-blank text unlocks the TEMPLATE step.
func (c *Controller) SetText(v string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.source != types.SourceText {
		return ErrWrongSource
	}
	c.st.text = v
	if strings.TrimSpace(v) != "" {
		c.st.advance(StepTemplate)
	}
	return nil
}

// SelectFile records the document to upload and unlocks the TEMPLATE step.
func (c *Controller) SelectFile(up api.Upload) error {
	if up.Name == "" {
		return ErrNoFile
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.source != types.SourceDocument {
		return ErrWrongSource
	}
	f := up
	c.st.file = &f
	c.st.advance(StepTemplate)
	return nil
}

// LoadTemplates fetches the template catalog.
func (c *Controller) LoadTemplates(ctx context.Context) ([]types.Template, error) {
	tpls, err := c.backend.ListTemplates(ctx)
	if err != nil {
		c.logger.Warn("template listing failed", "error", err)
		return nil, fmt.Errorf("list templates: %w", err)
	}
	c.mu.Lock()
	c.st.templates = tpls
	c.mu.Unlock()
	return tpls, nil
}

// SelectTemplate records the template choice. The step is unchanged.
func (c *Controller) SelectTemplate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.templateID = strings.TrimSpace(id)
}

// Submit checks that input and template are present and issues exactly one
// processing request. A missing template moves the wizard back to the
// TEMPLATE step. Guard failures never reach the backend.
func (c *Controller) Submit(ctx context.Context) (*types.Run, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	h := handlerFor(c.st.source)
	if h == nil {
		c.mu.Unlock()
		return nil, ErrNoSource
	}
	if err := h.missingInput(&c.st); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.st.templateID == "" {
		c.st.step = StepTemplate
		c.mu.Unlock()
		return nil, ErrNoTemplate
	}
	c.submitting = true
	snap := c.st
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	c.logger.Info("submitting", "source", snap.source, "template", snap.templateID)
	label, resp, err := h.submit(ctx, c.backend, &snap)
	if err != nil {
		c.logger.Warn("submit failed", "source", snap.source, "error", err)
		return nil, err
	}

	return &types.Run{
		ID:               uuid.NewString(),
		SourceType:       snap.source,
		SelectedTemplate: snap.templateID,
		FileCount:        1,
		When:             c.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Status:           types.RunCompleted,
		Results: []types.ProcessingResult{{
			FileLabel:  label,
			TemplateID: snap.templateID,
			Compiled:   resp.Compiled,
			Result:     resp.Result,
		}},
	}, nil
}

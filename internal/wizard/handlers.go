package wizard

import (
	"context"
	"fmt"
	"strings"

	"github.com/transformar/console/internal/api"
	"github.com/transformar/console/internal/types"
)

// handler holds the per-source behavior of the wizard.
type handler interface {
	// missingInput returns the guard error for absent input, or nil.
	missingInput(st *state) error
	// defaultChannel picks the channel applied when a message is selected.
	defaultChannel(d *types.MessageDetail) Channel
	// downloadsMedia reports whether the attachment channel is fetched as a
	// binary before it counts as ready.
	downloadsMedia() bool
	// submit issues the single processing request and returns the file label.
	submit(ctx context.Context, b Backend, st *state) (string, *api.ProcessResponse, error)
}

func handlerFor(k types.SourceKind) handler {
	switch k.Family() {
	case types.FamilyUpload:
		return documentHandler{}
	case types.FamilyText:
		return textHandler{}
	case types.FamilyEmail:
		return messageHandler{source: k, prefer: ChannelText}
	case types.FamilyChat:
		return messageHandler{source: k, prefer: ChannelAttachment, media: true}
	default:
		return nil
	}
}

// --- document ---

type documentHandler struct{}

func (documentHandler) missingInput(st *state) error {
	if st.file == nil {
		return ErrNoFile
	}
	return nil
}

func (documentHandler) defaultChannel(*types.MessageDetail) Channel { return ChannelNone }

func (documentHandler) downloadsMedia() bool { return false }

func (documentHandler) submit(ctx context.Context, b Backend, st *state) (string, *api.ProcessResponse, error) {
	resp, err := b.ProcessDocument(ctx, st.templateID, *st.file)
	if err != nil {
		return "", nil, fmt.Errorf("process document: %w", err)
	}
	return st.file.Name, resp, nil
}

// --- text ---

type textHandler struct{}

func (textHandler) missingInput(st *state) error {
	if strings.TrimSpace(st.text) == "" {
		return ErrNoText
	}
	return nil
}

func (textHandler) defaultChannel(*types.MessageDetail) Channel { return ChannelNone }

func (textHandler) downloadsMedia() bool { return false }

func (textHandler) submit(ctx context.Context, b Backend, st *state) (string, *api.ProcessResponse, error) {
	resp, err := b.Process(ctx, api.ProcessRequest{
		Method:     types.SourceText,
		TemplateID: st.templateID,
		Text:       st.text,
	})
	if err != nil {
		return "", nil, fmt.Errorf("process text: %w", err)
	}
	return types.FreeTextLabel, resp, nil
}

// --- gmail, outlook, whatsapp, telegram ---

// messageHandler serves both messaging families. prefer is the channel that
// wins when a message has text and attachments; media marks the sources whose
// attachments are downloaded before submission.
type messageHandler struct {
	source types.SourceKind
	prefer Channel
	media  bool
}

func (h messageHandler) missingInput(st *state) error {
	if st.messageID == "" || st.detail == nil {
		return ErrNoMessage
	}
	switch st.channel {
	case ChannelText:
		if !st.detail.HasText() {
			return ErrNoContent
		}
	case ChannelAttachment:
		if !st.detail.HasAttachments() {
			return ErrNoContent
		}
	default:
		return ErrNoContent
	}
	return nil
}

func (h messageHandler) defaultChannel(d *types.MessageDetail) Channel {
	text, att := d.HasText(), d.HasAttachments()
	switch {
	case text && att:
		return h.prefer
	case text:
		return ChannelText
	case att:
		return ChannelAttachment
	default:
		return ChannelNone
	}
}

func (h messageHandler) downloadsMedia() bool { return h.media }

func (h messageHandler) submit(ctx context.Context, b Backend, st *state) (string, *api.ProcessResponse, error) {
	if st.channel == ChannelAttachment && st.blob != nil {
		resp, err := b.ProcessDocument(ctx, st.templateID, api.Upload{
			Name:     st.blob.Name,
			MimeType: st.blob.MimeType,
			Data:     st.blob.Data,
		})
		if err != nil {
			return "", nil, fmt.Errorf("process %s media: %w", h.source, err)
		}
		return st.messageID, resp, nil
	}

	ref := &api.MessageRef{MessageID: st.messageID, UseText: st.channel == ChannelText}
	if st.channel == ChannelAttachment && st.detail.HasAttachments() {
		idx := st.attachmentIndex
		ref.AttachmentIndex = &idx
	}
	resp, err := b.Process(ctx, api.ProcessRequest{
		Method:     h.source,
		TemplateID: st.templateID,
		Message:    ref,
	})
	if err != nil {
		return "", nil, fmt.Errorf("process %s message: %w", h.source, err)
	}
	return st.messageID, resp, nil
}


// Package types defines core data structures for the transformar console.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SourceKind is the origin category of the input data.
type SourceKind string

// Source constants.
const (
	SourceDocument SourceKind = "document"
	SourceText     SourceKind = "text"
	SourceGmail    SourceKind = "gmail"
	SourceOutlook  SourceKind = "outlook"
	SourceWhatsApp SourceKind = "whatsapp"
	SourceTelegram SourceKind = "telegram"
)

// AllSources is the closed set of sources, in the order the console offers them.
var AllSources = []SourceKind{
	SourceDocument, SourceGmail, SourceOutlook, SourceWhatsApp, SourceTelegram, SourceText,
}

// Family groups sources that share input handling.
type Family string

// Family constants.
const (
	FamilyUpload Family = "upload"
	FamilyText   Family = "text"
	FamilyEmail  Family = "email"
	FamilyChat   Family = "chat"
)

// IsValidSource checks if a source string is valid.
func IsValidSource(s string) bool {
	for _, v := range AllSources {
		if string(v) == s {
			return true
		}
	}
	return false
}

// ParseSourceKind converts a user-supplied string into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !IsValidSource(s) {
		names := make([]string, len(AllSources))
		for i, v := range AllSources {
			names[i] = string(v)
		}
		return "", fmt.Errorf("invalid source %q (must be: %s)", s, strings.Join(names, ", "))
	}
	return SourceKind(s), nil
}

// Family returns the input family of the source.
func (k SourceKind) Family() Family {
	switch k {
	case SourceDocument:
		return FamilyUpload
	case SourceText:
		return FamilyText
	case SourceGmail, SourceOutlook:
		return FamilyEmail
	case SourceWhatsApp, SourceTelegram:
		return FamilyChat
	default:
		return ""
	}
}

// IsMessaging reports whether the source lists messages from a connected account.
func (k SourceKind) IsMessaging() bool {
	f := k.Family()
	return f == FamilyEmail || f == FamilyChat
}

// Title is the display name used by the console.
func (k SourceKind) Title() string {
	switch k {
	case SourceDocument:
		return "Documentos"
	case SourceText:
		return "Texto Simple"
	case SourceGmail:
		return "Gmail"
	case SourceOutlook:
		return "Outlook"
	case SourceWhatsApp:
		return "WhatsApp"
	case SourceTelegram:
		return "Telegram"
	default:
		return string(k)
	}
}

// Hint is the one-line description shown under the source name.
func (k SourceKind) Hint() string {
	switch k {
	case SourceDocument:
		return "Facturas, contratos, reportes"
	case SourceText:
		return "Notas, descripciones"
	case SourceGmail:
		return "Correos de clientes, pedidos"
	case SourceOutlook:
		return "Correos corporativos"
	case SourceWhatsApp:
		return "Mensajes de clientes"
	case SourceTelegram:
		return "Chats y mensajes"
	default:
		return ""
	}
}

// FreeTextLabel is the file label recorded for free-text submissions.
const FreeTextLabel = "texto_libre.txt"

// Template is a backend-owned column template.
type Template struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// Attachment describes one attachment of a message. The backend sends either
// an object or just the filename.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// UnmarshalJSON accepts both "name.pdf" and {"id":...,"filename":...}.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = Attachment{Filename: name}
		return nil
	}
	type plain Attachment
	var p struct {
		plain
		Name     string `json:"name,omitempty"`
		MimeAlt  string `json:"mimeType,omitempty"`
		MediaID  string `json:"media_id,omitempty"`
		FileID   string `json:"file_id,omitempty"`
		FileSize int64  `json:"file_size,omitempty"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Attachment(p.plain)
	if a.Filename == "" {
		a.Filename = p.Name
	}
	if a.MimeType == "" {
		a.MimeType = p.MimeAlt
	}
	if a.ID == "" {
		a.ID = firstNonEmpty(p.MediaID, p.FileID)
	}
	if a.Size == 0 {
		a.Size = p.FileSize
	}
	return nil
}

// MessageSummary is a read-only listing entry for a messaging source.
// Chat sources may carry the body and media inline.
type MessageSummary struct {
	ID             string       `json:"id"`
	From           string       `json:"from,omitempty"`
	Subject        string       `json:"subject,omitempty"`
	Date           string       `json:"date,omitempty"`
	HasAttachments bool         `json:"hasAttachments,omitempty"`
	Text           *string      `json:"text,omitempty"`
	Media          []Attachment `json:"media,omitempty"`
}

// Label returns the display label for the listing.
func (m MessageSummary) Label() string {
	switch {
	case m.From != "" && m.Subject != "":
		return m.From + " · " + m.Subject
	case m.Subject != "":
		return m.Subject
	case m.From != "":
		return m.From
	case m.Text != nil && *m.Text != "":
		return *m.Text
	default:
		return m.ID
	}
}

// InlineDetail derives a detail from fields already present in the listing.
// Returns nil when the listing carries neither text nor media.
func (m MessageSummary) InlineDetail() *MessageDetail {
	if m.Text == nil && len(m.Media) == 0 {
		return nil
	}
	d := &MessageDetail{Attachments: append([]Attachment(nil), m.Media...)}
	if m.Text != nil {
		d.Text = *m.Text
	}
	return d
}

// MessageDetail is fetched on demand when a message is selected.
type MessageDetail struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// HasText reports whether the message has a usable body.
func (d *MessageDetail) HasText() bool {
	return d != nil && strings.TrimSpace(d.Text) != ""
}

// HasAttachments reports whether the message has at least one attachment.
func (d *MessageDetail) HasAttachments() bool {
	return d != nil && len(d.Attachments) > 0
}

// Compiled holds the instructions the backend compiled from the template.
type Compiled struct {
	ExtractInstr   string `json:"extract_instr"`
	TransformInstr string `json:"transform_instr"`
}

// ProcessingResult is one processed input and its opaque result payload.
type ProcessingResult struct {
	FileLabel  string          `json:"fileName,omitempty"`
	TemplateID string          `json:"template_id"`
	Compiled   Compiled        `json:"compiled"`
	Result     json.RawMessage `json:"result"`
}

// Run status constants.
const (
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is the persisted record of one submission.
type Run struct {
	ID               string             `json:"id,omitempty"`
	SourceType       SourceKind         `json:"sourceType"`
	SelectedTemplate string             `json:"selectedTemplate"`
	FileCount        int                `json:"fileCount"`
	When             string             `json:"when"`
	Status           string             `json:"status,omitempty"`
	Error            string             `json:"error,omitempty"`
	Results          []ProcessingResult `json:"results"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Package api is the HTTP client for the transformar processing backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/transformar/console/internal/auth"
	"github.com/transformar/console/internal/types"
)

// DefaultBaseURL is the backend used when nothing else is configured.
const DefaultBaseURL = "http://localhost:8000"

// DefaultListLimit is the number of messages requested per listing.
const DefaultListLimit = 10

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	Logger    *slog.Logger
	Transport http.RoundTripper
}

// Client talks to the processing backend.
type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// New creates a backend client.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		base: base,
		http: auth.NewClient(auth.Options{
			Token:   opts.Token,
			Timeout: opts.Timeout,
			Base:    opts.Transport,
		}),
		logger: logger,
	}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.base
}

// Blob is a downloaded binary attachment.
type Blob struct {
	Name     string
	MimeType string
	Data     []byte
}

// Upload is a file sent to /process/document.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// ProcessResponse is the backend's answer to a processing request.
type ProcessResponse struct {
	Compiled types.Compiled `json:"compiled"`
	Result   json.RawMessage `json:"result"`
}

// MessageRef selects the content of a stored message.
type MessageRef struct {
	MessageID       string `json:"message_id"`
	UseText         bool   `json:"use_text"`
	AttachmentIndex *int   `json:"attachment_index,omitempty"`
}

// ProcessRequest is the JSON body of POST /process.
type ProcessRequest struct {
	Method     types.SourceKind
	TemplateID string
	Text       string
	Message    *MessageRef
}

// MarshalJSON nests the message reference under the source name.
func (p ProcessRequest) MarshalJSON() ([]byte, error) {
	body := struct {
		Method     types.SourceKind `json:"method"`
		TemplateID string           `json:"template_id"`
		Text       *string          `json:"text,omitempty"`
		Gmail      *MessageRef      `json:"gmail,omitempty"`
		Outlook    *MessageRef      `json:"outlook,omitempty"`
		WhatsApp   *MessageRef      `json:"whatsapp,omitempty"`
		Telegram   *MessageRef      `json:"telegram,omitempty"`
	}{Method: p.Method, TemplateID: p.TemplateID}

	switch p.Method {
	case types.SourceText:
		text := p.Text
		body.Text = &text
	case types.SourceGmail:
		body.Gmail = p.Message
	case types.SourceOutlook:
		body.Outlook = p.Message
	case types.SourceWhatsApp:
		body.WhatsApp = p.Message
	case types.SourceTelegram:
		body.Telegram = p.Message
	default:
		return nil, fmt.Errorf("method %q has no JSON request form", p.Method)
	}
	if p.Method != types.SourceText && p.Message == nil {
		return nil, fmt.Errorf("method %q requires a message reference", p.Method)
	}
	return json.Marshal(body)
}

// --- Templates ---

// ListTemplates returns the backend templates. A body that is not an array
// yields an empty list.
func (c *Client) ListTemplates(ctx context.Context) ([]types.Template, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/templates", &raw); err != nil {
		return nil, err
	}
	var out []types.Template
	if err := json.Unmarshal(raw, &out); err != nil {
		return []types.Template{}, nil
	}
	if out == nil {
		out = []types.Template{}
	}
	return out, nil
}

// --- Messaging inputs ---

// ListMessages returns the latest messages of a connected source.
func (c *Client) ListMessages(ctx context.Context, source types.SourceKind, limit int) ([]types.MessageSummary, error) {
	if !source.IsMessaging() {
		return nil, fmt.Errorf("source %q has no message listing", source)
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	path := fmt.Sprintf("/input/%s/messages?limit=%d", source, limit)

	var resp struct {
		Messages []types.MessageSummary `json:"messages"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		resp.Messages = []types.MessageSummary{}
	}
	return resp.Messages, nil
}

// GetMessage fetches the content detail of one message.
func (c *Client) GetMessage(ctx context.Context, source types.SourceKind, id string) (*types.MessageDetail, error) {
	if !source.IsMessaging() {
		return nil, fmt.Errorf("source %q has no messages", source)
	}
	path := fmt.Sprintf("/input/%s/messages/%s", source, url.PathEscape(id))

	var d types.MessageDetail
	if err := c.getJSON(ctx, path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// MediaPath returns the download path of a chat attachment.
func MediaPath(source types.SourceKind, id string) (string, error) {
	switch source {
	case types.SourceWhatsApp:
		return "/input/whatsapp/media/" + url.PathEscape(id), nil
	case types.SourceTelegram:
		return "/input/telegram/file/" + url.PathEscape(id), nil
	default:
		return "", fmt.Errorf("source %q has no media download", source)
	}
}

// DownloadMedia fetches the raw bytes of a chat attachment.
func (c *Client) DownloadMedia(ctx context.Context, source types.SourceKind, id string) (*Blob, error) {
	path, err := MediaPath(source, id)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", id, err)
	}

	blob := &Blob{Name: id, Data: data}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt != "application/octet-stream" {
			blob.MimeType = mt
		}
	}
	if blob.MimeType == "" {
		blob.MimeType = mimetype.Detect(data).String()
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		blob.Name = params["filename"]
	}
	return blob, nil
}

// --- Processing ---

// ProcessDocument uploads a file for extraction with the given template.
func (c *Client) ProcessDocument(ctx context.Context, templateID string, up Upload) (*ProcessResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("template_id", templateID); err != nil {
		return nil, fmt.Errorf("write template_id: %w", err)
	}

	ct := up.MimeType
	if ct == "" {
		ct = mimetype.Detect(up.Data).String()
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, up.Name))
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/process/document", w.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeProcess(resp.Body)
}

// Process submits a JSON processing request.
func (c *Client) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/process", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeProcess(resp.Body)
}

func decodeProcess(r io.Reader) (*ProcessResponse, error) {
	var out ProcessResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Result) == 0 {
		out.Result = json.RawMessage("null")
	}
	return &out, nil
}

// --- Integrations ---

// IntegrationStatus reports whether a messaging source is connected.
func (c *Client) IntegrationStatus(ctx context.Context, source types.SourceKind) (bool, error) {
	var resp struct {
		Connected bool `json:"connected"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/integration/%s/status", source), &resp); err != nil {
		return false, err
	}
	return resp.Connected, nil
}

// --- Auth ---

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		AuthToken   string `json:"authtoken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	for _, t := range []string{out.Token, out.AccessToken, out.AuthToken} {
		if t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("login response carried no token")
}

// RecoverPassword asks the backend to send recovery instructions.
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/auth/recover-password", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// --- Transport ---

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do executes a request and converts non-2xx answers into *Error.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Cache-Control", "no-store")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("execute request: %w", err)
	}
	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newError(resp.StatusCode, data)
	}
	return resp, nil
}

// Error is a non-2xx answer from the backend.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "backend returned " + strconv.Itoa(e.Status) + " " + http.StatusText(e.Status)
	}
	return e.Detail
}

// newError extracts the message of a structured error body, falling back to
// the raw text.
func newError(status int, body []byte) *Error {
	e := &Error{Status: status, Detail: strings.TrimSpace(string(body))}

	var structured map[string]json.RawMessage
	if json.Unmarshal(body, &structured) != nil {
		return e
	}
	for _, key := range []string{"detail", "message", "error"} {
		raw, ok := structured[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			e.Detail = s
		} else {
			e.Detail = string(raw)
		}
		return e
	}
	return e
}

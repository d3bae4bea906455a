package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transformar/console/internal/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Token: "tok"})
}

func TestListTemplates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/templates", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		io.WriteString(w, `[{"id":"tpl_abc","name":"Facturas","description":"campos de factura"},{"id":"tpl_2","name":"Pedidos"}]`)
	})

	tpls, err := c.ListTemplates(context.Background())
	require.NoError(t, err)
	require.Len(t, tpls, 2)
	assert.Equal(t, "tpl_abc", tpls[0].ID)
	require.NotNil(t, tpls[0].Description)
	assert.Equal(t, "campos de factura", *tpls[0].Description)
	assert.Nil(t, tpls[1].Description)
}

func TestListTemplatesNonArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"items":[]}`)
	})

	tpls, err := c.ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tpls)
}

func TestListMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/input/gmail/messages", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"messages":[{"id":"m1","from":"ana@x.com","subject":"Factura","hasAttachments":true}]}`)
	})

	msgs, err := c.ListMessages(context.Background(), types.SourceGmail, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.True(t, msgs[0].HasAttachments)
	assert.Equal(t, "ana@x.com · Factura", msgs[0].Label())
}

func TestListMessagesMissingKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})

	msgs, err := c.ListMessages(context.Background(), types.SourceTelegram, 5)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestListMessagesRejectsNonMessaging(t *testing.T) {
	c := New(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.ListMessages(context.Background(), types.SourceDocument, 10)
	assert.Error(t, err)
}

func TestGetMessageMixedAttachments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/input/outlook/messages/abc", r.URL.Path)
		io.WriteString(w, `{"text":"hola","attachments":["a.pdf",{"id":"x","filename":"b.png","mime_type":"image/png","size":12}]}`)
	})

	d, err := c.GetMessage(context.Background(), types.SourceOutlook, "abc")
	require.NoError(t, err)
	assert.True(t, d.HasText())
	require.Len(t, d.Attachments, 2)
	assert.Equal(t, "a.pdf", d.Attachments[0].Filename)
	assert.Equal(t, "image/png", d.Attachments[1].MimeType)
	assert.EqualValues(t, 12, d.Attachments[1].Size)
}

func TestDownloadMediaPaths(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Disposition", `attachment; filename="foto.png"`)
		w.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	})

	b, err := c.DownloadMedia(context.Background(), types.SourceWhatsApp, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "foto.png", b.Name)
	assert.Equal(t, "image/png", b.MimeType)

	_, err = c.DownloadMedia(context.Background(), types.SourceTelegram, "f-2")
	require.NoError(t, err)

	assert.Equal(t, []string{"/input/whatsapp/media/m-1", "/input/telegram/file/f-2"}, paths)

	_, err = c.DownloadMedia(context.Background(), types.SourceGmail, "x")
	assert.Error(t, err)
}

func TestProcessDocumentMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/process/document", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "tpl_abc", r.FormValue("template_id"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "factura.txt", hdr.Filename)
		assert.Equal(t, "total 10", string(data))
		io.WriteString(w, `{"compiled":{"extract_instr":"e","transform_instr":"t"},"result":[{"total":10}]}`)
	})

	resp, err := c.ProcessDocument(context.Background(), "tpl_abc", Upload{Name: "factura.txt", Data: []byte("total 10")})
	require.NoError(t, err)
	assert.Equal(t, "e", resp.Compiled.ExtractInstr)
	assert.Equal(t, "t", resp.Compiled.TransformInstr)
	assert.JSONEq(t, `[{"total":10}]`, string(resp.Result))
}

func TestProcessTextBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/process", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"method":"text","template_id":"tpl_abc","text":"Invoice #123"}`, string(body))
		io.WriteString(w, `{"compiled":{},"result":{"ok":true}}`)
	})

	resp, err := c.Process(context.Background(), ProcessRequest{
		Method:     types.SourceText,
		TemplateID: "tpl_abc",
		Text:       "Invoice #123",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))
}

func TestProcessRequestMessageShapes(t *testing.T) {
	idx := 1
	cases := []struct {
		name string
		req  ProcessRequest
		want string
	}{
		{
			name: "email text",
			req:  ProcessRequest{Method: types.SourceGmail, TemplateID: "t", Message: &MessageRef{MessageID: "m", UseText: true}},
			want: `{"method":"gmail","template_id":"t","gmail":{"message_id":"m","use_text":true}}`,
		},
		{
			name: "email attachment",
			req:  ProcessRequest{Method: types.SourceOutlook, TemplateID: "t", Message: &MessageRef{MessageID: "m", AttachmentIndex: &idx}},
			want: `{"method":"outlook","template_id":"t","outlook":{"message_id":"m","use_text":false,"attachment_index":1}}`,
		},
		{
			name: "chat text",
			req:  ProcessRequest{Method: types.SourceTelegram, TemplateID: "t", Message: &MessageRef{MessageID: "9", UseText: true}},
			want: `{"method":"telegram","template_id":"t","telegram":{"message_id":"9","use_text":true}}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := json.Marshal(tc.req)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}

	_, err := json.Marshal(ProcessRequest{Method: types.SourceWhatsApp, TemplateID: "t"})
	assert.Error(t, err)
	_, err = json.Marshal(ProcessRequest{Method: types.SourceDocument, TemplateID: "t"})
	assert.Error(t, err)
}

func TestBackendErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":"plantilla inexistente"}`)
	})

	_, err := c.Process(context.Background(), ProcessRequest{Method: types.SourceText, TemplateID: "x", Text: "a"})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "plantilla inexistente", apiErr.Error())
}

func TestBackendErrorRawText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.ListTemplates(context.Background())
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "boom", apiErr.Detail)
}

func TestTransportErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Options{BaseURL: base})
	_, err := c.ListTemplates(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestIntegrationStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/integration/gmail/status":
			io.WriteString(w, `{"connected":true}`)
		default:
			io.WriteString(w, `{"connected":false}`)
		}
	})

	ok, err := c.IntegrationStatus(context.Background(), types.SourceGmail)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IntegrationStatus(context.Background(), types.SourceWhatsApp)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoginTokenAliases(t *testing.T) {
	for _, body := range []string{`{"token":"a1"}`, `{"access_token":"a1"}`, `{"authtoken":"a1"}`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/login", r.URL.Path)
			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "ana@x.com", creds["email"])
			io.WriteString(w, body)
		})
		tok, err := c.Login(context.Background(), "ana@x.com", "pw")
		require.NoError(t, err)
		assert.Equal(t, "a1", tok)
	}
}

func TestLoginNoToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})
	_, err := c.Login(context.Background(), "a", "b")
	assert.Error(t, err)
}

func TestRecoverPassword(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/auth/recover-password", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	})
	require.NoError(t, c.RecoverPassword(context.Background(), "ana@x.com"))
	assert.True(t, called)
}

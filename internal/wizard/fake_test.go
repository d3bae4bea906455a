package wizard

import (
	"context"
	"errors"
	"sync"

	"github.com/transformar/console/internal/api"
	"github.com/transformar/console/internal/types"
)

// fakeBackend records every call. Fields are set up before use.
type fakeBackend struct {
	mu sync.Mutex

	calls        []string
	disconnected map[types.SourceKind]bool
	listings     map[types.SourceKind][]types.MessageSummary
	details      map[string]*types.MessageDetail
	templates    []types.Template

	processReqs []api.ProcessRequest
	uploads     []api.Upload
	processErr  error
	listErr     error
	mediaErr    error

	// gates block the named call until closed.
	gates map[string]chan struct{}
}

func newFake() *fakeBackend {
	return &fakeBackend{
		disconnected: map[types.SourceKind]bool{},
		listings:     map[types.SourceKind][]types.MessageSummary{},
		details:      map[string]*types.MessageDetail{},
		gates:        map[string]chan struct{}{},
	}
}

func (f *fakeBackend) record(call string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.gates[call]
}

func (f *fakeBackend) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) gate(call string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[call] = g
	return g
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) processCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.processReqs) + len(f.uploads)
}

func (f *fakeBackend) ListTemplates(ctx context.Context) ([]types.Template, error) {
	f.record("templates")
	return f.templates, nil
}

func (f *fakeBackend) IntegrationStatus(ctx context.Context, source types.SourceKind) (bool, error) {
	gate := f.record("status:" + string(source))
	if err := f.wait(ctx, gate); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.disconnected[source], nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, source types.SourceKind, limit int) ([]types.MessageSummary, error) {
	gate := f.record("list:" + string(source))
	if err := f.wait(ctx, gate); err != nil {
		return nil, err
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listings[source], nil
}

func (f *fakeBackend) GetMessage(ctx context.Context, source types.SourceKind, id string) (*types.MessageDetail, error) {
	gate := f.record("get:" + id)
	if err := f.wait(ctx, gate); err != nil {
		return nil, err
	}
	d, ok := f.details[id]
	if !ok {
		return nil, &api.Error{Status: 404, Detail: "mensaje no encontrado"}
	}
	return d, nil
}

func (f *fakeBackend) DownloadMedia(ctx context.Context, source types.SourceKind, id string) (*api.Blob, error) {
	gate := f.record("media:" + id)
	if err := f.wait(ctx, gate); err != nil {
		return nil, err
	}
	if f.mediaErr != nil {
		return nil, f.mediaErr
	}
	return &api.Blob{Name: id, MimeType: "application/pdf", Data: []byte("%PDF-" + id)}, nil
}

func (f *fakeBackend) ProcessDocument(ctx context.Context, templateID string, up api.Upload) (*api.ProcessResponse, error) {
	gate := f.record("upload:" + up.Name)
	if err := f.wait(ctx, gate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.uploads = append(f.uploads, up)
	f.mu.Unlock()
	if f.processErr != nil {
		return nil, f.processErr
	}
	return okResponse(), nil
}

func (f *fakeBackend) Process(ctx context.Context, req api.ProcessRequest) (*api.ProcessResponse, error) {
	gate := f.record("process:" + string(req.Method))
	if err := f.wait(ctx, gate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.processReqs = append(f.processReqs, req)
	f.mu.Unlock()
	if f.processErr != nil {
		return nil, f.processErr
	}
	return okResponse(), nil
}

func okResponse() *api.ProcessResponse {
	return &api.ProcessResponse{
		Compiled: types.Compiled{ExtractInstr: "extraer", TransformInstr: "transformar"},
		Result:   []byte(`[{"total":"10"}]`),
	}
}

var errDown = errors.New("connection refused")

func strPtr(s string) *string { return &s }

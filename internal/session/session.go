// Package session is the typed client session of the console: the auth token,
// the pending-integration marker and the last processing run.
package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/transformar/console/internal/db"
	"github.com/transformar/console/internal/types"
)

// Well-known storage keys.
const (
	KeyToken              = "authToken"
	KeyUserEmail          = "userEmail"
	KeyPendingIntegration = "pendingIntegration"
	KeyProcessingData     = "processingData"
)

// ErrNoSession is returned when no token is stored.
var ErrNoSession = errors.New("not logged in (run 'transformar login' first)")

// ErrNoRun is returned when nothing has been processed yet.
var ErrNoRun = errors.New("no processed results yet")

// Store is the storage the session needs.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	ReplaceRun(key, value string, r *db.RunRow) error
	InsertRun(r *db.RunRow) error
}

// Session wraps a Store with typed accessors.
type Session struct {
	store Store
}

// New returns a session backed by s.
func New(s Store) *Session {
	return &Session{store: s}
}

// Token returns the auth token, or ErrNoSession.
func (s *Session) Token() (string, error) {
	tok, err := s.get(KeyToken)
	if err != nil {
		return "", err
	}
	if tok == "" {
		return "", ErrNoSession
	}
	return tok, nil
}

// SetToken stores the auth token and the email it was issued for.
func (s *Session) SetToken(token, email string) error {
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if err := s.store.Set(KeyToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if email != "" {
		if err := s.store.Set(KeyUserEmail, email); err != nil {
			return fmt.Errorf("store email: %w", err)
		}
	}
	return nil
}

// ClearToken ends the session.
func (s *Session) ClearToken() error {
	if err := s.store.Delete(KeyToken); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return s.store.Delete(KeyUserEmail)
}

// UserEmail returns the email of the logged-in user, or "".
func (s *Session) UserEmail() string {
	v, _ := s.get(KeyUserEmail)
	return v
}

// PendingIntegration returns the source the user asked to connect, if any.
func (s *Session) PendingIntegration() (types.SourceKind, bool) {
	v, err := s.get(KeyPendingIntegration)
	if err != nil || v == "" {
		return "", false
	}
	return types.SourceKind(v), true
}

// SetPendingIntegration marks a source as waiting for connection.
func (s *Session) SetPendingIntegration(k types.SourceKind) error {
	if !k.IsMessaging() {
		return fmt.Errorf("source %q has no integration", k)
	}
	return s.store.Set(KeyPendingIntegration, string(k))
}

// ClearPendingIntegration drops the pending marker.
func (s *Session) ClearPendingIntegration() error {
	return s.store.Delete(KeyPendingIntegration)
}

// LastRun returns the persisted record of the last submission, or ErrNoRun.
func (s *Session) LastRun() (*types.Run, error) {
	v, err := s.get(KeyProcessingData)
	if err != nil {
		return nil, err
	}
	if v == "" {
		return nil, ErrNoRun
	}
	var run types.Run
	if err := json.Unmarshal([]byte(v), &run); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyProcessingData, err)
	}
	return &run, nil
}

// SaveRun replaces the persisted run as a whole and appends it to the history.
func (s *Session) SaveRun(run *types.Run) error {
	if run == nil {
		return fmt.Errorf("nil run")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = types.RunCompleted
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	row := runRow(run)
	row.Payload = string(data)
	if err := s.store.ReplaceRun(KeyProcessingData, string(data), row); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// RecordFailure appends a failed submission to the history. The persisted
// run is left untouched.
func (s *Session) RecordFailure(source types.SourceKind, templateID string, cause error) error {
	row := &db.RunRow{
		ID:               uuid.NewString(),
		SourceType:       string(source),
		SelectedTemplate: templateID,
		FileCount:        1,
		Status:           types.RunFailed,
	}
	if cause != nil {
		row.Error = cause.Error()
	}
	return s.store.InsertRun(row)
}

func runRow(run *types.Run) *db.RunRow {
	row := &db.RunRow{
		ID:               run.ID,
		SourceType:       string(run.SourceType),
		SelectedTemplate: run.SelectedTemplate,
		FileCount:        run.FileCount,
		Status:           run.Status,
		Error:            run.Error,
		CreatedAt:        run.When,
	}
	if len(run.Results) > 0 {
		row.FileLabel = run.Results[0].FileLabel
	}
	return row
}

func (s *Session) get(key string) (string, error) {
	v, err := s.store.Get(key)
	if errors.Is(err, db.ErrNotFound) {
		if key == KeyToken {
			return "", ErrNoSession
		}
		if key == KeyProcessingData {
			return "", ErrNoRun
		}
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return v, nil
}

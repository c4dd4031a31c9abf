package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/markup"
	"github.com/mkarlsen/opsimport/internal/tabular"
)

// ErrSessionNotFound is returned when a session ID is unknown or the
// session has already been retired.
var ErrSessionNotFound = errors.New("session not found")

// SessionTimeout bounds one full session, parse through commit.
var SessionTimeout = 10 * time.Minute

// sessionRetention is how long finished sessions stay queryable.
var sessionRetention = 5 * time.Minute

// Options tunes pipeline behavior. Zero values pick sensible defaults.
type Options struct {
	BatchSize     int
	BatchPause    time.Duration
	DefaultPolicy catalog.DefaultPolicy
	Categories    *markup.CategoryMatcher

	// OnRefresh is signaled after every commit pass so collaborators can
	// refresh cached catalogs and displayed lists.
	OnRefresh func(ctx context.Context)
}

// Service owns the import sessions. Each session runs its stages strictly
// in order on a single goroutine; the service only coordinates lookup,
// progress fan-out, and retention.
type Service struct {
	catalogs catalog.Source
	store    RecordStore
	opts     Options

	mu       sync.RWMutex
	sessions map[uuid.UUID]*activeSession
}

type activeSession struct {
	mu        sync.Mutex
	snapshot  Session
	cat       *catalog.Catalog
	cancel    context.CancelFunc
	done      chan struct{} // closed when the current async stage finishes
	listeners []chan Progress
}

// NewService creates a Service over the given collaborators.
func NewService(catalogs catalog.Source, store RecordStore, opts Options) *Service {
	return &Service{
		catalogs: catalogs,
		store:    store,
		opts:     opts,
		sessions: make(map[uuid.UUID]*activeSession),
	}
}

// StartValidation opens a session for an uploaded file and begins
// parse + validate in the background. Returns the session ID immediately;
// poll Session or SubscribeProgress for updates.
func (s *Service) StartValidation(tenantID uuid.UUID, fileName string, data []byte) (uuid.UUID, error) {
	if len(data) == 0 {
		return uuid.Nil, errors.New("empty upload")
	}

	id := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), SessionTimeout)

	as := &activeSession{
		snapshot: Session{
			ID:        id,
			TenantID:  tenantID,
			FileName:  fileName,
			State:     StateParsing,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.sessions[id] = as
	s.mu.Unlock()

	go s.runValidation(ctx, as, fileName, data)

	return id, nil
}

// runValidation executes the Parsing and Validating stages.
func (s *Service) runValidation(ctx context.Context, as *activeSession, fileName string, data []byte) {
	defer close(as.done)

	logger := slog.Default().With("session", as.snapshot.ID, "file", fileName)

	cat, err := s.catalogs.LoadCatalog(ctx, as.snapshot.TenantID)
	if err != nil {
		as.fail(fmt.Sprintf("load reference catalog: %v", err))
		logger.Error("catalog load failed", "error", err)
		s.cleanup(as.snapshot.ID, sessionRetention)
		return
	}
	as.mu.Lock()
	as.cat = cat
	as.mu.Unlock()

	rows, err := s.parseRows(fileName, data, as.progressFunc())
	if err != nil {
		as.fail(err.Error())
		logger.Warn("parse failed", "error", err)
		s.cleanup(as.snapshot.ID, sessionRetention)
		return
	}

	as.setState(StateValidating)
	v := &Validator{
		Catalog:  cat,
		Default:  s.opts.DefaultPolicy,
		Progress: as.progressFunc(),
	}
	result := v.ValidateRows(rows)

	as.mu.Lock()
	as.snapshot.Validation = result
	as.snapshot.State = StateReadyToCommit
	as.mu.Unlock()

	// A validated session that never commits must not live in the map
	// forever. Sessions that do commit are reclaimed by the commit
	// goroutine instead.
	s.expireIfUncommitted(as.snapshot.ID, SessionTimeout)

	logger.Info("validation finished",
		"rows", result.TotalRows,
		"valid", result.ValidCount,
		"errors", result.ErrorCount,
		"warnings", result.WarningCount,
	)
}

// parseRows picks the parser by file shape, runs it, and emits the single
// parse-completion progress report. Header-level failures surface here so
// nothing row-level starts after them.
func (s *Service) parseRows(fileName string, data []byte, progress ProgressFunc) ([]map[string]string, error) {
	if isMarkup(fileName, data) {
		res, err := markup.Parse(data, s.opts.Categories)
		if err != nil {
			return nil, err
		}
		report(progress, StageParsing, len(res.Rows), len(res.Rows))
		return res.Rows, nil
	}

	grid, err := tabular.Parse(data, tabular.DetectKind(fileName))
	if err != nil {
		return nil, err
	}
	report(progress, StageParsing, len(grid.Rows), len(grid.Rows))

	// Header check before any row-level work begins.
	if err := CheckHeaders(grid.Headers); err != nil {
		return nil, err
	}
	return CanonicalRows(grid), nil
}

// isMarkup detects tagged-markup uploads by extension or a leading '<'.
func isMarkup(fileName string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(fileName), ".xml") {
		return true
	}
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}), " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// Commit begins the commit stage for a validated session. Only rows in the
// validation result's ValidRows are persisted; rows that failed validation
// were already excluded and are never retried.
func (s *Service) Commit(sessionID uuid.UUID) error {
	as, ok := s.get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	as.mu.Lock()
	if as.snapshot.State != StateReadyToCommit {
		state := as.snapshot.State
		as.mu.Unlock()
		return fmt.Errorf("session is %s, not ready to commit", state)
	}
	if len(as.snapshot.Validation.ValidRows) == 0 {
		as.mu.Unlock()
		return errors.New("no valid rows to commit")
	}
	as.snapshot.State = StateCommitting
	done := make(chan struct{})
	as.done = done
	rows := as.snapshot.Validation.ValidRows
	tenantID := as.snapshot.TenantID
	as.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), SessionTimeout)

	go func() {
		defer cancel()
		defer func() {
			close(done)
			s.cleanup(sessionID, sessionRetention)
		}()

		ex := &Executor{
			Store:      s.store,
			BatchSize:  s.opts.BatchSize,
			Pause:      s.opts.BatchPause,
			Progress:   as.progressFunc(),
			Logger:     slog.Default().With("session", sessionID),
			OnComplete: s.opts.OnRefresh,
		}
		result := ex.Run(ctx, tenantID, rows)

		as.mu.Lock()
		as.snapshot.Upload = result
		if result.Success {
			as.snapshot.State = StateCompleted
		} else {
			as.snapshot.State = StatePartiallyFailed
		}
		as.mu.Unlock()
		as.notify()
		as.closeListeners()
	}()

	return nil
}

// Session returns a snapshot of the session's current state.
func (s *Service) Session(sessionID uuid.UUID) (Session, bool) {
	as, ok := s.get(sessionID)
	if !ok {
		return Session{}, false
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.snapshot, true
}

// Wait blocks until the session's current async stage completes, then
// returns the resulting snapshot. Used by the CLI and tests.
func (s *Service) Wait(sessionID uuid.UUID) (Session, bool) {
	as, ok := s.get(sessionID)
	if !ok {
		return Session{}, false
	}
	as.mu.Lock()
	done := as.done
	as.mu.Unlock()
	<-done
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.snapshot, true
}

// SubscribeProgress returns a channel receiving progress reports for the
// session. Slow listeners miss intermediate updates rather than block the
// pipeline.
func (s *Service) SubscribeProgress(sessionID uuid.UUID) (<-chan Progress, error) {
	as, ok := s.get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	ch := make(chan Progress, 16)
	as.mu.Lock()
	ch <- as.snapshot.Progress
	if as.snapshot.State.Terminal() {
		// Session already settled; deliver the last report and end the
		// stream so late subscribers do not hang.
		close(ch)
	} else {
		as.listeners = append(as.listeners, ch)
	}
	as.mu.Unlock()

	return ch, nil
}

// Close cancels a session's timeout context and forgets it. A row write in
// flight is allowed to finish; cancellation takes effect between batches.
func (s *Service) Close(sessionID uuid.UUID) {
	as, ok := s.get(sessionID)
	if !ok {
		return
	}
	as.cancel()
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *Service) get(id uuid.UUID) (*activeSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	as, ok := s.sessions[id]
	return as, ok
}

// cleanup forgets the session after a retention window so late polls still
// see the final result.
func (s *Service) cleanup(id uuid.UUID, after time.Duration) {
	time.AfterFunc(after, func() {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	})
}

// expireIfUncommitted forgets a validated session that was abandoned
// without a commit. A session that moved on to Committing is left for the
// commit goroutine's own cleanup.
func (s *Service) expireIfUncommitted(id uuid.UUID, after time.Duration) {
	time.AfterFunc(after, func() {
		as, ok := s.get(id)
		if !ok {
			return
		}
		as.mu.Lock()
		if as.snapshot.State != StateReadyToCommit {
			as.mu.Unlock()
			return
		}
		// Flipping the state under the lock means a Commit racing with
		// the deadline either got in first or is refused cleanly.
		as.snapshot.State = StateIdle
		as.snapshot.Error = "session expired before commit"
		as.mu.Unlock()
		as.cancel()
		as.closeListeners()
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
	})
}

func (as *activeSession) setState(state State) {
	as.mu.Lock()
	as.snapshot.State = state
	as.mu.Unlock()
}

// fail returns the session to Idle with a surfaced error, per the session
// state machine: fatal parse and header-level errors are not terminal states.
func (as *activeSession) fail(msg string) {
	as.mu.Lock()
	as.snapshot.State = StateIdle
	as.snapshot.Error = msg
	as.mu.Unlock()
	as.notify()
	as.closeListeners()
}

// progressFunc returns a ProgressFunc that records the latest report on the
// snapshot and fans it out to listeners.
func (as *activeSession) progressFunc() ProgressFunc {
	return func(p Progress) {
		as.mu.Lock()
		as.snapshot.Progress = p
		as.mu.Unlock()
		as.notify()
	}
}

// notify fans the latest progress report out to listeners. Sends are
// non-blocking and happen under the session mutex so they cannot race with
// closeListeners.
func (as *activeSession) notify() {
	as.mu.Lock()
	defer as.mu.Unlock()

	for _, ch := range as.listeners {
		select {
		case ch <- as.snapshot.Progress:
		default:
		}
	}
}

// closeListeners ends every subscribed progress stream. Called once the
// session reaches a terminal state.
func (as *activeSession) closeListeners() {
	as.mu.Lock()
	listeners := as.listeners
	as.listeners = nil
	as.mu.Unlock()

	for _, ch := range listeners {
		close(ch)
	}
}

package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/notify"
)

// SaveBusyTimeout clears a stuck busy flag when a save never reports back.
const SaveBusyTimeout = 10 * time.Second

var (
	ErrClosed         = errors.New("session closed")
	ErrNotReady       = errors.New("license not loaded")
	ErrSaveInProgress = errors.New("a save is already in progress")
	ErrNoChanges      = errors.New("no changes to save")
	ErrStaleSave      = errors.New("save superseded")
)

// Loader fetches what a detail view needs.
type Loader interface {
	FetchModuleCatalog(ctx context.Context) ([]licensing.ModuleCatalogEntry, error)
	FetchLicenseDetail(ctx context.Context, id int64) (licensing.LicenseDetail, error)
}

// Saver persists a license.
type Saver interface {
	SaveLicense(ctx context.Context, payload licensing.SavePayload) (licensing.SaveResponse, error)
}

// Backend is everything a Session calls.
type Backend interface {
	Loader
	Saver
}

// Notifier receives user facing messages. *notify.Notices implements it.
type Notifier interface {
	Show(message string, severity notify.Severity)
}

// Phase is the lifecycle stage of a Session.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseSaving
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Backend Backend
	// LicenseID selects the license to open; zero or less creates a new one.
	LicenseID   int64
	Mode        Mode
	Policy      Policy
	AdminID     string
	Notifier    Notifier
	Logger      zerolog.Logger
	BusyTimeout time.Duration
	Clock       func() time.Time
}

// SaveTicket identifies one in-flight save.
type SaveTicket struct {
	Payload licensing.SavePayload
	gen     uint64
}

// Session drives one detail view: it loads the catalog and license, guards
// saves and drops results that arrive after Close.
type Session struct {
	cfg    SessionConfig
	logger zerolog.Logger

	mu        sync.Mutex
	phase     Phase
	state     *State
	catalog   []licensing.ModuleCatalogEntry
	err       error
	alive     bool
	busy      bool
	saveGen   uint64
	busyTimer *time.Timer
}

// NewSession returns a Session in PhaseLoading.
func NewSession(cfg SessionConfig) *Session {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = SaveBusyTimeout
	}
	if cfg.LicenseID <= 0 {
		cfg.Mode = ModeNew
	} else if cfg.Mode == ModeNew {
		cfg.Mode = ModeEdit
	}
	return &Session{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "editor").Int64("license_id", cfg.LicenseID).Logger(),
		phase:  PhaseLoading,
		alive:  true,
	}
}

// Open loads the module catalog and, for an existing license, its detail.
// Both requests run concurrently and the state is built only after both
// finished. A catalog failure is reported as a warning and leaves the
// catalog empty; a detail failure keeps the session loading and is returned.
func (s *Session) Open(ctx context.Context) error {
	if s.cfg.Backend == nil {
		return fmt.Errorf("session backend is nil")
	}
	var (
		catalog    []licensing.ModuleCatalogEntry
		catalogErr error
		detail     licensing.LicenseDetail
	)
	var g errgroup.Group
	g.Go(func() error {
		catalog, catalogErr = s.cfg.Backend.FetchModuleCatalog(ctx)
		return nil
	})
	if s.cfg.Mode != ModeNew {
		g.Go(func() error {
			var err error
			detail, err = s.cfg.Backend.FetchLicenseDetail(ctx, s.cfg.LicenseID)
			if err != nil {
				return fmt.Errorf("load license %d: %w", s.cfg.LicenseID, err)
			}
			return nil
		})
	}
	detailErr := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return ErrClosed
	}

	if catalogErr != nil {
		s.logger.Warn().Err(catalogErr).Msg("module catalog unavailable")
		s.notify("Could not load module list: "+licensing.Message(catalogErr), notify.SeverityWarning)
		catalog = nil
	}
	s.catalog = catalog

	if detailErr != nil {
		s.err = detailErr
		s.logger.Error().Err(detailErr).Msg("license load failed")
		s.notify(licensing.Message(detailErr), notify.SeverityError)
		return detailErr
	}

	opts := []Option{WithClock(s.cfg.Clock)}
	if s.cfg.Mode == ModeNew {
		s.state = NewLicense(s.cfg.Policy, opts...)
	} else {
		s.state = FromDetail(detail, s.cfg.Mode, s.cfg.Policy, opts...)
	}
	s.err = nil
	s.phase = PhaseReady
	s.logger.Debug().Str("mode", s.state.Mode().String()).Int("modules", s.state.ModuleCount()).Msg("license opened")
	return nil
}

// BeginSave validates the working copy and marks the session busy. The
// returned ticket must be passed to FinishSave.
func (s *Session) BeginSave() (SaveTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return SaveTicket{}, ErrClosed
	}
	if s.state == nil {
		return SaveTicket{}, ErrNotReady
	}
	if s.busy {
		return SaveTicket{}, ErrSaveInProgress
	}
	if s.state.Mode() == ModeView {
		return SaveTicket{}, ErrReadOnly
	}
	if err := s.state.ValidationErr(); err != nil {
		return SaveTicket{}, err
	}
	if !s.state.IsSubmittable() {
		return SaveTicket{}, ErrNoChanges
	}

	s.busy = true
	s.phase = PhaseSaving
	s.saveGen++
	gen := s.saveGen
	s.busyTimer = time.AfterFunc(s.cfg.BusyTimeout, func() { s.clearBusy(gen) })
	return SaveTicket{
		Payload: s.state.BuildSavePayload(s.catalog, s.cfg.AdminID),
		gen:     gen,
	}, nil
}

// Submit sends the ticket's payload. It touches no session state and may run
// on any goroutine.
func (s *Session) Submit(ctx context.Context, ticket SaveTicket) (licensing.SaveResponse, error) {
	return s.cfg.Backend.SaveLicense(ctx, ticket.Payload)
}

// FinishSave applies the outcome of Submit. On success the state is
// committed and becomes read-only; on failure the working copy is kept.
func (s *Session) FinishSave(ticket SaveTicket, resp licensing.SaveResponse, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return ErrClosed
	}
	if ticket.gen != s.saveGen {
		return ErrStaleSave
	}
	s.stopBusyLocked()

	if err != nil {
		s.logger.Error().Err(err).Msg("license save failed")
		s.notify(licensing.Message(err), notify.SeverityError)
		return err
	}
	created := s.state.IsNew()
	s.state.Commit(resp)
	msg := "License updated successfully"
	if created {
		msg = "License created successfully"
	}
	if resp.Message != "" {
		msg = resp.Message
	}
	s.notify(msg, notify.SeveritySuccess)
	s.logger.Info().Bool("created", created).Int64("saved_id", resp.ID).Msg("license saved")
	return nil
}

// Save runs BeginSave, Submit and FinishSave in sequence.
func (s *Session) Save(ctx context.Context) (licensing.SaveResponse, error) {
	ticket, err := s.BeginSave()
	if err != nil {
		return licensing.SaveResponse{}, err
	}
	resp, err := s.Submit(ctx, ticket)
	if finishErr := s.FinishSave(ticket, resp, err); finishErr != nil {
		return licensing.SaveResponse{}, finishErr
	}
	return resp, nil
}

// Close ends the session. Later completions are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
	if s.busyTimer != nil {
		s.busyTimer.Stop()
		s.busyTimer = nil
	}
}

// Update runs fn against the working state under the session lock.
func (s *Session) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return ErrClosed
	}
	if s.state == nil {
		return ErrNotReady
	}
	return fn(s.state)
}

// State returns the working state, or nil while loading. Callers on the UI
// goroutine may read it directly; other goroutines should use Update.
func (s *Session) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// Err returns the load error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Catalog returns the module catalog loaded by Open.
func (s *Session) Catalog() []licensing.ModuleCatalogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]licensing.ModuleCatalogEntry, len(s.catalog))
	copy(out, s.catalog)
	return out
}

func (s *Session) LicenseID() int64 { return s.cfg.LicenseID }

func (s *Session) clearBusy(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.saveGen || !s.busy {
		return
	}
	s.logger.Warn().Dur("timeout", s.cfg.BusyTimeout).Msg("save did not report back; clearing busy flag")
	s.busy = false
	s.busyTimer = nil
	if s.phase == PhaseSaving {
		s.phase = PhaseReady
	}
}

func (s *Session) stopBusyLocked() {
	if s.busyTimer != nil {
		s.busyTimer.Stop()
		s.busyTimer = nil
	}
	s.busy = false
	s.phase = PhaseReady
}

func (s *Session) notify(message string, severity notify.Severity) {
	if s.cfg.Notifier != nil && message != "" {
		s.cfg.Notifier.Show(message, severity)
	}
}

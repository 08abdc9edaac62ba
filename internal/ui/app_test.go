package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/notify"
	"github.com/five82/licdesk/internal/prefs"
	"github.com/five82/licdesk/internal/session"
	"github.com/five82/licdesk/internal/state"
)

// fakeAPI is an in-memory licensing.API.
type fakeAPI struct {
	mu       sync.Mutex
	details  map[int64]licensing.LicenseDetail
	catalog  []licensing.ModuleCatalogEntry
	audits   map[string][]licensing.AuditRecord
	saved    []licensing.SavePayload
	deleted  []int64
	loginErr error
	saveErr  error
	auditErr error
	nextID   int64
}

func newFakeAPI() *fakeAPI {
	serial := int64(100001)
	id := int64(1)
	return &fakeAPI{
		details: map[int64]licensing.LicenseDetail{
			1: {
				Header: licensing.LicenseHeader{ID: &id, SerialNumber: &serial, Domain: "acme.test", CustomerName: "Acme", Active: true},
				Modules: []licensing.ModuleGrant{
					{ID: 1, ModuleID: 1, Module: "Billing", NumberOfUsers: 5, StartDate: "2025-01-01", EndDate: "2025-12-31"},
				},
			},
		},
		catalog: []licensing.ModuleCatalogEntry{{ID: 1, Name: "Billing"}, {ID: 2, Name: "Reports"}},
		audits:  map[string][]licensing.AuditRecord{},
		nextID:  100,
	}
}

func (f *fakeAPI) Login(_ context.Context, username, password string) (licensing.LoginResponse, error) {
	if f.loginErr != nil {
		return licensing.LoginResponse{}, f.loginErr
	}
	if username != "admin" || password != "admin" {
		return licensing.LoginResponse{Success: false, Message: "Invalid credentials"}, nil
	}
	return licensing.LoginResponse{Success: true, AdminID: "1", Username: username, Token: "tok"}, nil
}

func (f *fakeAPI) FetchLicenseSummaries(context.Context) ([]licensing.LicenseSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]licensing.LicenseSummary, 0, len(f.details))
	for _, d := range f.details {
		out = append(out, d.Header.Summary())
	}
	return out, nil
}

func (f *fakeAPI) FetchLicenseDetail(_ context.Context, id int64) (licensing.LicenseDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return licensing.LicenseDetail{}, fmt.Errorf("license %d: %w", id, licensing.ErrNotFound)
	}
	return d.Clone(), nil
}

func (f *fakeAPI) FetchModuleCatalog(context.Context) ([]licensing.ModuleCatalogEntry, error) {
	return f.catalog, nil
}

func (f *fakeAPI) SaveLicense(_ context.Context, payload licensing.SavePayload) (licensing.SaveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return licensing.SaveResponse{}, f.saveErr
	}
	f.saved = append(f.saved, payload)
	id := f.nextID
	if !payload.IsCreate() {
		id = *payload.ID
	} else {
		f.nextID++
	}
	return licensing.SaveResponse{Success: true, ID: id}, nil
}

func (f *fakeAPI) DeleteLicense(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.details, id)
	return nil
}

func (f *fakeAPI) FetchAuditTrail(_ context.Context, domain string) ([]licensing.AuditRecord, error) {
	if f.auditErr != nil {
		return nil, f.auditErr
	}
	return f.audits[domain], nil
}

type fakeSessions struct {
	current session.Identity
	ok      bool
	cleared int
}

func (s *fakeSessions) Get() (session.Identity, bool) { return s.current, s.ok }

func (s *fakeSessions) Set(id session.Identity) error {
	s.current, s.ok = id, true
	return nil
}

func (s *fakeSessions) Clear() error {
	s.current, s.ok = session.Identity{}, false
	s.cleared++
	return nil
}

type countingRefresher struct{ n int }

func (r *countingRefresher) Trigger() { r.n++ }

type harness struct {
	api      *fakeAPI
	store    *state.Store
	sessions *fakeSessions
	notices  *notify.Notices
	confirm  *notify.Confirmer
	poller   *countingRefresher
	model    Model
}

func newHarness(t *testing.T, loggedIn bool) *harness {
	t.Helper()
	h := &harness{
		api:      newFakeAPI(),
		store:    &state.Store{},
		sessions: &fakeSessions{},
		notices:  notify.NewNotices(time.Minute, time.Minute),
		confirm:  &notify.Confirmer{},
		poller:   &countingRefresher{},
	}
	if loggedIn {
		h.sessions.current = session.Identity{AdminID: "1", Username: "admin", Token: "tok"}
		h.sessions.ok = true
	}
	h.model = New(Options{
		API:       h.api,
		Store:     h.store,
		Sessions:  h.sessions,
		Notices:   h.notices,
		Confirmer: h.confirm,
		Poller:    h.poller,
		PageSize:  10,
		Prefs:     prefs.Defaults(),
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(h.model.subs.close)
	h.send(tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

// send feeds msg to the model and returns the command it produced.
func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

// run executes cmd and feeds its message back, once.
func (h *harness) run(cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if msg == nil {
		return nil
	}
	return h.send(msg)
}

func (h *harness) loadLicenses(items []licensing.LicenseSummary) {
	h.store.Update(items, nil)
	h.send(snapshotMsg(h.store.Snapshot()))
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyType(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func typeText(h *harness, s string) {
	for _, r := range s {
		h.send(keyRunes(string(r)))
	}
}

func summaries(n int) []licensing.LicenseSummary {
	out := make([]licensing.LicenseSummary, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, licensing.LicenseSummary{
			ID:           int64(i),
			SerialNumber: int64(100000 + i),
			Domain:       fmt.Sprintf("site%02d.test", i),
			CustomerName: fmt.Sprintf("Customer %02d", i),
			Active:       i%2 == 1,
		})
	}
	return out
}

func TestNew_StartsOnLoginWithoutSession(t *testing.T) {
	h := newHarness(t, false)
	if h.model.view != ViewLogin {
		t.Fatalf("view = %v, want login", h.model.view)
	}
	if !h.model.capturingInput() {
		t.Fatal("login form should capture input")
	}
}

func TestNew_StartsOnListWithSession(t *testing.T) {
	h := newHarness(t, true)
	if h.model.view != ViewList {
		t.Fatalf("view = %v, want list", h.model.view)
	}
	if h.model.identity.Username != "admin" {
		t.Fatalf("identity = %+v", h.model.identity)
	}
}

func TestLogin_SuccessStoresSession(t *testing.T) {
	h := newHarness(t, false)
	typeText(h, "admin")
	h.send(keyType(tea.KeyEnter))
	typeText(h, "admin")
	cmd := h.send(keyType(tea.KeyEnter))
	if !h.model.login.busy {
		t.Fatal("login should be busy while the request runs")
	}
	h.run(cmd)

	if h.model.view != ViewList {
		t.Fatalf("view = %v, want list", h.model.view)
	}
	if !h.sessions.ok || h.sessions.current.AdminID != "1" || h.sessions.current.Token != "tok" {
		t.Fatalf("stored session = %+v", h.sessions.current)
	}
	if h.poller.n != 1 {
		t.Fatalf("poller triggered %d times, want 1", h.poller.n)
	}
}

func TestLogin_RejectedShowsMessage(t *testing.T) {
	h := newHarness(t, false)
	typeText(h, "admin")
	h.send(keyType(tea.KeyTab))
	typeText(h, "wrong")
	h.run(h.send(keyType(tea.KeyEnter)))

	if h.model.view != ViewLogin {
		t.Fatalf("view = %v, want login", h.model.view)
	}
	if h.model.login.err != "Invalid credentials" {
		t.Fatalf("login err = %q", h.model.login.err)
	}
	if h.model.login.inputs[loginPassword].Value() != "" {
		t.Fatal("password should be cleared after a failed login")
	}
	if h.sessions.ok {
		t.Fatal("no session should be stored")
	}
}

func TestLogin_RequiresBothFields(t *testing.T) {
	h := newHarness(t, false)
	h.send(keyType(tea.KeyTab))
	if cmd := h.send(keyType(tea.KeyEnter)); cmd != nil {
		t.Fatal("empty form should not submit")
	}
	if h.model.login.err == "" {
		t.Fatal("expected a validation message")
	}
}

func TestSnapshot_RebuildsListOnNewRevision(t *testing.T) {
	h := newHarness(t, true)
	h.loadLicenses(summaries(25))

	lv := h.model.list.view
	if len(lv.All()) != 25 || lv.TotalPages() != 3 || len(lv.Page()) != 10 {
		t.Fatalf("all=%d pages=%d page=%d", len(lv.All()), lv.TotalPages(), len(lv.Page()))
	}

	rev := h.model.lastRevision
	h.send(snapshotMsg(h.store.Snapshot()))
	if h.model.lastRevision != rev {
		t.Fatal("same snapshot should not bump the revision")
	}
}

func TestSnapshot_UnauthorizedEndsSession(t *testing.T) {
	h := newHarness(t, true)
	h.loadLicenses(summaries(3))

	h.store.Update(nil, fmt.Errorf("fetch licenses: %w", licensing.ErrUnauthorized))
	h.send(snapshotMsg(h.store.Snapshot()))

	if h.model.view != ViewLogin {
		t.Fatalf("view = %v, want login", h.model.view)
	}
	if h.sessions.ok || h.sessions.cleared != 1 {
		t.Fatalf("session should be cleared, cleared=%d", h.sessions.cleared)
	}
	if got := h.notices.Current(); got.Message != session.ExpiredMessage || got.Severity != notify.SeverityWarning {
		t.Fatalf("notice = %+v", got)
	}
	if h.store.Snapshot().HasLicenses {
		t.Fatal("store should be reset")
	}
	if len(h.model.list.view.All()) != 0 {
		t.Fatal("list should be emptied")
	}
}

// answerConfirm runs cmd until it opens a confirmation, answers it and
// returns the command's message.
func answerConfirm(t *testing.T, h *harness, cmd tea.Cmd, wantText string, yes bool) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command that asks for confirmation")
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	deadline := time.After(2 * time.Second)
	for {
		if p, ok := h.confirm.Pending(); ok {
			if !strings.Contains(p.Text, wantText) {
				t.Fatalf("prompt = %q, want %q", p.Text, wantText)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("confirmation never opened")
		case <-time.After(5 * time.Millisecond):
		}
	}
	h.confirm.Resolve(yes)

	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("command did not finish after the answer")
	}
	return nil
}

func TestLogoutKey_AsksFirst(t *testing.T) {
	h := newHarness(t, true)
	h.loadLicenses(summaries(3))
	cmd := h.send(keyRunes("L"))

	if h.model.view != ViewList || !h.sessions.ok {
		t.Fatalf("L alone should not log out: view=%v session=%v", h.model.view, h.sessions.ok)
	}

	h.send(answerConfirm(t, h, cmd, "Log out?", true))
	if h.model.view != ViewLogin || h.sessions.ok {
		t.Fatalf("view=%v session=%v", h.model.view, h.sessions.ok)
	}
	if got := h.notices.Current().Message; got != "Logged out" {
		t.Fatalf("notice = %q", got)
	}
}

func TestLogoutKey_DeclinedKeepsSession(t *testing.T) {
	h := newHarness(t, true)
	h.loadLicenses(summaries(3))
	cmd := h.send(keyRunes("L"))

	h.send(answerConfirm(t, h, cmd, "Log out?", false))
	if h.model.view != ViewList || !h.sessions.ok {
		t.Fatalf("view=%v session=%v", h.model.view, h.sessions.ok)
	}
	if len(h.model.list.view.All()) != 3 {
		t.Fatal("declining should keep the list")
	}
}

func TestHelpToggle(t *testing.T) {
	h := newHarness(t, true)
	h.send(keyRunes("?"))
	if !h.model.showHelp {
		t.Fatal("? should open help")
	}
	if !strings.Contains(h.model.View(), "Keyboard Shortcuts") {
		t.Fatal("help overlay not rendered")
	}
	h.send(keyRunes("j"))
	if h.model.showHelp {
		t.Fatal("any key should close help")
	}
}

func TestCycleThemeSavesPreference(t *testing.T) {
	h := newHarness(t, true)
	path := t.TempDir() + "/prefs.toml"
	h.model.prefsPath = path

	h.send(keyRunes("T"))
	if h.model.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q", h.model.theme.Name)
	}
	loaded, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("load prefs: %v", err)
	}
	if loaded.Theme != "Kanagawa" {
		t.Fatalf("saved theme = %q", loaded.Theme)
	}
}

func TestPromptOpensAndClosesModal(t *testing.T) {
	h := newHarness(t, true)
	h.send(promptMsg(notify.Prompt{Text: "Sure?", Open: true}))
	if h.model.modal == nil {
		t.Fatal("open prompt should show a modal")
	}
	if !strings.Contains(h.model.View(), "Sure?") {
		t.Fatal("modal text not rendered")
	}
	h.send(promptMsg(notify.Prompt{}))
	if h.model.modal != nil {
		t.Fatal("closed prompt should dismiss the modal")
	}
}

func TestHandleAPIError(t *testing.T) {
	h := newHarness(t, true)

	if h.model.handleAPIError(context.Canceled, "") {
		t.Fatal("cancel is not an expiry")
	}
	if !h.notices.Current().Empty() {
		t.Fatal("cancel should not raise a notice")
	}

	h.model.handleAPIError(&licensing.APIError{Status: 409, Message: "Domain already exists"}, "fallback")
	if got := h.notices.Current().Message; got != "Domain already exists" {
		t.Fatalf("notice = %q", got)
	}

	h.model.handleAPIError(errors.New("dial tcp: connection refused"), "Could not reach server")
	if got := h.notices.Current().Message; got != "Could not reach server" {
		t.Fatalf("notice = %q", got)
	}

	if !h.model.handleAPIError(fmt.Errorf("x: %w", licensing.ErrUnauthorized), "") {
		t.Fatal("401 should expire the session")
	}
	if h.model.view != ViewLogin {
		t.Fatalf("view = %v", h.model.view)
	}
}

func TestViewRendersEveryScreen(t *testing.T) {
	h := newHarness(t, true)
	h.loadLicenses(summaries(12))

	for _, width := range []int{60, 100, 140} {
		h.send(tea.WindowSizeMsg{Width: width, Height: 30})
		out := h.model.View()
		if !strings.Contains(out, logoText) {
			t.Fatalf("width %d: header missing", width)
		}
		if !strings.Contains(out, "site01.test") {
			t.Fatalf("width %d: first row missing", width)
		}
	}
}

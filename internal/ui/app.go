package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/licdesk/internal/editor"
	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/listview"
	"github.com/five82/licdesk/internal/notify"
	"github.com/five82/licdesk/internal/prefs"
	"github.com/five82/licdesk/internal/session"
	"github.com/five82/licdesk/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewLogin View = iota
	ViewList
	ViewDetail
	ViewAudit
)

func (v View) String() string {
	switch v {
	case ViewLogin:
		return "login"
	case ViewList:
		return "list"
	case ViewDetail:
		return "detail"
	case ViewAudit:
		return "audit"
	default:
		return "unknown"
	}
}

// SessionStore is the current-session provider. *session.Store implements it.
type SessionStore interface {
	Get() (session.Identity, bool)
	Set(session.Identity) error
	Clear() error
}

// Refresher asks the background poller for an immediate refresh.
type Refresher interface {
	Trigger()
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	API       licensing.API
	Store     *state.Store
	Sessions  SessionStore
	Notices   *notify.Notices
	Loading   *notify.Loading
	Confirmer *notify.Confirmer
	Poller    Refresher
	Policy    editor.Policy
	PageSize  int
	PollTick  time.Duration
	Prefs     prefs.Prefs
	PrefsPath string
	Logger    zerolog.Logger
}

// subscriptions are the service channels the model listens on. They live
// behind a pointer so every copy of the Model shares them.
type subscriptions struct {
	notices <-chan notify.Notice
	loading <-chan bool
	prompts <-chan notify.Prompt
	cancels []func()
}

func (s *subscriptions) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Collaborators
	ctx       context.Context
	api       licensing.API
	store     *state.Store
	sessions  SessionStore
	notices   *notify.Notices
	loading   *notify.Loading
	confirmer *notify.Confirmer
	poller    Refresher
	policy    editor.Policy
	prefs     prefs.Prefs
	prefsPath string
	pollTick  time.Duration
	logger    zerolog.Logger
	subs      *subscriptions

	// UI state
	keys     keyMap
	theme    Theme
	view     View
	width    int
	height   int
	ready    bool
	showHelp bool
	modal    Modal
	spinner  spinner.Model
	busy     bool
	notice   notify.Notice
	identity session.Identity

	// Data state
	snapshot     state.Snapshot
	lastRevision uint64

	list   listState
	login  loginState
	detail detailState
	audit  auditState
}

type nopRefresher struct{}

func (nopRefresher) Trigger() {}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}
	notices := opts.Notices
	if notices == nil {
		notices = notify.NewNotices(0, 0)
	}
	loading := opts.Loading
	if loading == nil {
		loading = &notify.Loading{}
	}
	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = &notify.Confirmer{}
	}
	var poller Refresher = nopRefresher{}
	if opts.Poller != nil {
		poller = opts.Poller
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	userPrefs := opts.Prefs
	if userPrefs.Theme == "" {
		userPrefs = prefs.Defaults()
	}
	pageSize := opts.PageSize
	if userPrefs.PageSize > 0 {
		pageSize = userPrefs.PageSize
	}

	subs := &subscriptions{}
	var cancel func()
	subs.notices, cancel = notices.Subscribe()
	subs.cancels = append(subs.cancels, cancel)
	subs.loading, cancel = loading.Subscribe()
	subs.cancels = append(subs.cancels, cancel)
	subs.prompts, cancel = confirmer.Subscribe()
	subs.cancels = append(subs.cancels, cancel)

	m := Model{
		ctx:       ctx,
		api:       opts.API,
		store:     store,
		sessions:  opts.Sessions,
		notices:   notices,
		loading:   loading,
		confirmer: confirmer,
		poller:    poller,
		policy:    opts.Policy,
		prefs:     userPrefs,
		prefsPath: opts.PrefsPath,
		pollTick:  pollTick,
		logger:    opts.Logger.With().Str("component", "ui").Logger(),
		subs:      subs,
		keys:      DefaultKeyMap(),
		theme:     GetTheme(userPrefs.Theme),
		spinner:   spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		list:      newListState(pageSize, listview.ParseStatusFilter(userPrefs.StatusFilter)),
		login:     newLoginState(),
	}

	m.view = ViewLogin
	if m.sessions != nil {
		if id, ok := m.sessions.Get(); ok {
			m.identity = id
			m.view = ViewList
		}
	}
	if m.view == ViewLogin {
		m.login.focusField(0)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.pollTick),
		fetchSnapshotCmd(m.store),
		m.spinner.Tick,
		waitForNotice(m.subs.notices),
		waitForLoading(m.subs.loading),
		waitForPrompt(m.subs.prompts),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeAuditViewport()
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchSnapshotCmd(m.store), tickCmd(m.pollTick))

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case noticeMsg:
		m.notice = notify.Notice(msg)
		return m, waitForNotice(m.subs.notices)

	case loadingMsg:
		m.busy = bool(msg)
		return m, waitForLoading(m.subs.loading)

	case promptMsg:
		m.applyPrompt(notify.Prompt(msg))
		return m, waitForPrompt(m.subs.prompts)

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case detailLoadedMsg:
		return m.handleDetailLoaded(msg)

	case saveResultMsg:
		return m.handleSaveResult(msg)

	case deleteResultMsg:
		return m.handleDeleteResult(msg)

	case logoutResultMsg:
		return m.handleLogoutResult(msg)

	case discardResultMsg:
		if msg.confirmed && msg.session == m.detail.session {
			m.leaveDetail()
		}
		return m, nil

	case auditLoadedMsg:
		return m.handleAuditLoaded(msg)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m, tea.Quit
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	// Text entry owns the keyboard.
	if m.capturingInput() {
		return m.routeViewKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil
	}

	return m.routeViewKey(msg)
}

func (m Model) routeViewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewLogin:
		return m.handleLoginKey(msg)
	case ViewList:
		return m.handleListKey(msg)
	case ViewDetail:
		return m.handleDetailKey(msg)
	case ViewAudit:
		return m.handleAuditKey(msg)
	}
	return m, nil
}

// capturingInput reports whether a text input currently has focus.
func (m Model) capturingInput() bool {
	switch m.view {
	case ViewLogin:
		return true
	case ViewList:
		return m.list.searching || m.list.jumping
	case ViewDetail:
		return m.detail.editing
	}
	return false
}

// applySnapshot feeds a store snapshot into the list view.
func (m *Model) applySnapshot(snap state.Snapshot) {
	m.snapshot = snap

	if snap.LastError != nil && errors.Is(snap.LastError, licensing.ErrUnauthorized) && m.view != ViewLogin {
		m.expireSession()
		return
	}
	if snap.Revision != m.lastRevision {
		m.lastRevision = snap.Revision
		m.list.setItems(snap.Licenses)
	}
}

func (m *Model) applyPrompt(p notify.Prompt) {
	if p.Open {
		m.modal = newConfirmModal(p, m.confirmer)
		return
	}
	if _, ok := m.modal.(confirmModal); ok {
		m.modal = nil
	}
}

// handleAPIError reports err unless it is a session expiry, in which case
// the operator is sent back to the login view. It returns true when the
// session expired.
func (m *Model) handleAPIError(err error, fallback string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, licensing.ErrUnauthorized) {
		m.expireSession()
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := licensing.Message(err)
	if fallback != "" {
		var apiErr *licensing.APIError
		if !errors.As(err, &apiErr) {
			msg = fallback
		}
	}
	m.notices.Error(msg)
	return false
}

// expireSession clears the stored identity and returns to the login view.
func (m *Model) expireSession() {
	m.logger.Warn().Msg("session expired")
	m.endSession()
	m.notices.Warning(session.ExpiredMessage)
}

type logoutResultMsg struct {
	confirmed bool
	err       error
}

// logoutCmd asks before the session is dropped.
func logoutCmd(ctx context.Context, confirmer *notify.Confirmer) tea.Cmd {
	return func() tea.Msg {
		ok, err := confirmer.Ask(ctx, "Log out?")
		return logoutResultMsg{confirmed: ok && err == nil, err: err}
	}
}

func (m Model) handleLogoutResult(msg logoutResultMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, notify.ErrConfirmPending):
		m.notices.Warning("Another confirmation is already open")
	case msg.confirmed && m.view != ViewLogin:
		m.logout()
	}
	return m, nil
}

func (m *Model) logout() {
	m.logger.Info().Str("user", m.identity.Username).Msg("logged out")
	m.endSession()
	m.notices.Info("Logged out")
}

func (m *Model) endSession() {
	if m.sessions != nil {
		if err := m.sessions.Clear(); err != nil {
			m.logger.Error().Err(err).Msg("clear session")
		}
	}
	m.closeDetail()
	m.audit = auditState{}
	m.store.Reset()
	m.lastRevision = 0
	m.snapshot = state.Snapshot{}
	m.list.setItems(nil)
	m.identity = session.Identity{}
	m.view = ViewLogin
	m.login = newLoginState()
	m.login.focusField(0)
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn().Err(err).Msg("save prefs")
	}
}

// renderMain renders the header, command bar and the active view.
func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

// contentHeight is the height left for the active view.
func (m Model) contentHeight() int {
	return max(m.height-chromeRows, minRows)
}

func (m Model) renderContent() string {
	switch m.view {
	case ViewLogin:
		return m.renderLogin()
	case ViewList:
		return m.renderList()
	case ViewDetail:
		return m.renderDetail()
	case ViewAudit:
		return m.renderAudit()
	default:
		return ""
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type noticeMsg notify.Notice

type loadingMsg bool

type promptMsg notify.Prompt

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func waitForNotice(ch <-chan notify.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func waitForLoading(ch <-chan bool) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return loadingMsg(v)
	}
}

func waitForPrompt(ch <-chan notify.Prompt) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return promptMsg(p)
	}
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	m := New(opts)
	defer m.subs.close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.closeDetail()
	}
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

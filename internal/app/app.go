package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/five82/licdesk/internal/config"
	"github.com/five82/licdesk/internal/editor"
	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/logging"
	"github.com/five82/licdesk/internal/notify"
	"github.com/five82/licdesk/internal/prefs"
	"github.com/five82/licdesk/internal/session"
	"github.com/five82/licdesk/internal/state"
	"github.com/five82/licdesk/internal/ui"
)

// Options configure the licdesk application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses the prefs file next to the session file
	APIURL     string // overrides the configured backend
	LogLevel   string // overrides the configured log level
	Version    string
}

// Env is everything the console and the CLI commands share: the loaded
// config, the logger, the stored session and an API client that sends the
// session's token.
type Env struct {
	Config   config.Config
	Logger   zerolog.Logger
	Sessions *session.Store
	Loading  *notify.Loading
	Client   *licensing.Client

	closeLog func() error
}

// Bootstrap loads configuration and builds the shared services.
func Bootstrap(opts Options) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(opts.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.LogLevel = v
	}

	logger, closeLog, err := logging.New(logging.Options{
		File:    cfg.LogFile,
		Level:   cfg.LogLevel,
		Version: opts.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	sessions := session.NewStore(cfg.SessionFile)
	loading := &notify.Loading{}
	client, err := licensing.NewClient(licensing.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.RequestTimeout,
		UserAgent: userAgent(opts.Version),
		Token:     sessions.Token,
		Observer:  loading,
		Logger:    logger,
	})
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("init api client: %w", err)
	}

	appLog := logging.Component(logger, "app")
	appLog.Info().Str("api_url", client.BaseURL()).Msg("licdesk starting")
	return &Env{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		Loading:  loading,
		Client:   client,
		closeLog: closeLog,
	}, nil
}

// Policy returns the editor rules from the config.
func (e *Env) Policy() editor.Policy {
	return editor.Policy{
		AllowEmptyModules: e.Config.AllowEmptyModules,
		RequireSerial:     e.Config.RequireSerial,
	}
}

// Close flushes and closes the log file.
func (e *Env) Close() error {
	if e.closeLog == nil {
		return nil
	}
	return e.closeLog()
}

// Run boots the console until the context is cancelled or the operator quits.
func Run(ctx context.Context, opts Options) error {
	env, err := Bootstrap(opts)
	if err != nil {
		return err
	}
	defer env.Close()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = env.Config.PrefsPath()
	}
	userPrefs, err := prefs.Load(prefsPath)
	if err != nil {
		appLog := logging.Component(env.Logger, "app")
		appLog.Warn().Err(err).Str("path", prefsPath).Msg("prefs unreadable, using defaults")
		userPrefs = prefs.Defaults()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store := &state.Store{}
	poller := NewPoller(PollerOptions{
		Store:    store,
		Source:   env.Client,
		Interval: env.Config.PollInterval,
		Ready: func() bool {
			_, ok := env.Sessions.Get()
			return ok
		},
		Logger: env.Logger,
	})
	poller.Start(ctx)

	return ui.Run(ui.Options{
		Context:   ctx,
		API:       env.Client,
		Store:     store,
		Sessions:  env.Sessions,
		Notices:   notify.NewNotices(notify.DefaultErrorTTL, notify.DefaultNoticeTTL),
		Loading:   env.Loading,
		Confirmer: &notify.Confirmer{},
		Poller:    poller,
		Policy:    env.Policy(),
		PageSize:  env.Config.PageSize,
		Prefs:     userPrefs,
		PrefsPath: prefsPath,
		Logger:    env.Logger,
	})
}

// userAgent is blank for dev builds so the client default applies.
func userAgent(version string) string {
	if version == "" || version == "dev" {
		return ""
	}
	return "licdesk/" + version
}

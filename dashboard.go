// Package dashboard wires the dashboard core together: the session, the push stream that
// follows it and the REST client that authenticates with it.
package dashboard

import (
	"fmt"
	"os"

	"github.com/contentai-pro/dashboard-core/apiclient"
	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/internal/config"
	"github.com/contentai-pro/dashboard-core/pubsub"
	"github.com/contentai-pro/dashboard-core/session"
	"github.com/contentai-pro/dashboard-core/stream"
	"github.com/contentai-pro/dashboard-core/tokenstore"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// pubsub buffer for forwarded stream events
const eventBufferSize = 100

type Options struct {
	// Backend overrides the backend picked by the config, e.g a shared FakeBackend in tests.
	Backend auth.Backend
	// Transport overrides the websocket transport.
	Transport stream.Transport
	// Listener, if set, receives forwarded stream events.
	Listener stream.EventListener
	// EnablePrometheus registers session, stream and pubsub metrics.
	EnablePrometheus bool
}

// Dashboard is the running core. Build it with Setup and Close it when done.
type Dashboard struct {
	Session *session.Manager
	Stream  *stream.Client
	API     *apiclient.Client

	owner    *Owner
	store    tokenstore.Store
	notifier pubsub.Notifier
	sub      *stream.EventSub
}

// Setup builds the core from cfg. The session is still loading: call
// Dashboard.Session.Restore once to resolve any persisted token.
func Setup(cfg *config.Config, opts Options) (*Dashboard, error) {
	backend := opts.Backend
	if backend == nil {
		backend = NewBackend(cfg)
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	subsystem := func(name string) string {
		if opts.EnablePrometheus {
			return name
		}
		return ""
	}
	// Forwarded events only get a channel when someone drains it; without a listener the
	// stream client drops them.
	var ps *pubsub.PubSub
	var notifier pubsub.Notifier
	if opts.Listener != nil {
		ps = pubsub.NewPubSub(eventBufferSize)
		notifier = ps
		if opts.EnablePrometheus {
			notifier = pubsub.NewPromNotifier(notifier, "pubsub")
		}
	}
	transport := opts.Transport
	if transport == nil {
		transport = stream.NewWebsocketTransport(cfg.WebsocketURL, cfg.StreamPath)
	}

	d := &Dashboard{
		store:    store,
		notifier: notifier,
	}
	d.Session = session.NewManager(backend, store, session.Options{
		AuthTimeout:         cfg.AuthTimeout,
		PrometheusSubsystem: subsystem("session"),
	})
	d.Stream = stream.NewClient(transport, notifier, stream.Options{
		PrometheusSubsystem: subsystem("stream"),
	})
	d.API = apiclient.New(cfg.APIURL, apiclient.TokenFunc(func() string {
		return d.Session.Snapshot().Token
	}), apiclient.Options{
		Rate:  cfg.APIRate,
		Burst: cfg.APIBurst,
	})
	if opts.Listener != nil {
		d.sub = stream.NewEventSub(ps, opts.Listener)
		go func() {
			if err := d.sub.Listen(); err != nil {
				logger.Err(err).Msg("stream event listener stopped")
			}
		}()
	}
	d.owner = NewOwner(d.Session, d.Stream)
	logger.Info().
		Str("backend", cfg.Backend).
		Str("store", cfg.TokenStore).
		Str("api", cfg.APIURL).
		Str("ws", cfg.WebsocketURL).
		Msg("dashboard core ready")
	return d, nil
}

// NewBackend returns the backend strategy cfg selects.
func NewBackend(cfg *config.Config) auth.Backend {
	if cfg.Backend == config.BackendFake {
		return auth.NewFakeBackend(cfg.Secret, cfg.FakeLatency, logger)
	}
	return auth.NewHTTPBackend(cfg.APIURL, cfg.AuthTimeout)
}

// OpenStore returns the token store cfg selects. SQL stores are namespaced by the API URL
// so several backends can share one database.
func OpenStore(cfg *config.Config) (tokenstore.Store, error) {
	switch cfg.TokenStore {
	case config.StoreMemory:
		return tokenstore.NewMemoryStore(), nil
	case config.StoreFile:
		return tokenstore.NewFileStore(cfg.TokenFile, cfg.Secret), nil
	case config.StorePostgres:
		return tokenstore.NewSQLStore(tokenstore.DriverPostgres, cfg.DB, cfg.Secret, cfg.APIURL)
	case config.StoreSQLite:
		return tokenstore.NewSQLStore(tokenstore.DriverSQLite, cfg.DB, cfg.Secret, cfg.APIURL)
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// Close tears down the stream and waits for queued remote logouts.
func (d *Dashboard) Close() {
	d.owner.Close()
	d.Stream.Close()
	if d.sub != nil {
		d.sub.Teardown()
	}
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close notifier")
		}
	}
	d.Session.Close()
	if err := d.store.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close token store")
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	dashboard "github.com/contentai-pro/dashboard-core"
	"github.com/contentai-pro/dashboard-core/auth"
	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/contentai-pro/dashboard-core/internal/config"
	"github.com/contentai-pro/dashboard-core/stream"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var version = "dev"

const usage = `usage: contentai <command> [flags]

commands:
  login      -email -password
  register   -name -email -password [-company] [-website]
  logout
  whoami
  listen     [-for duration]   print notifications and stream events
  campaigns  [-status]         list campaigns as JSON
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(errOut, usage)
		return fmt.Errorf("missing command")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.Level())
	auth.ClientVersion = version

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:     cfg.SentryDSN,
			Release: version,
		})
		if err != nil {
			return fmt.Errorf("sentry.Init: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}
	if cfg.OTLPURL != "" {
		shutdown, err := internal.ConfigureOTLP(internal.OTLPConfig{
			URL:      cfg.OTLPURL,
			User:     cfg.OTLPUser,
			Password: cfg.OTLPPass,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("ConfigureOTLP: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			shutdown(sctx)
		}()
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, promhttp.Handler()); err != nil {
				fmt.Fprintf(errOut, "metrics listener: %s\n", err)
			}
		}()
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "login":
		return cmdLogin(ctx, cfg, args, out)
	case "register":
		return cmdRegister(ctx, cfg, args, out)
	case "logout":
		return cmdLogout(ctx, cfg, out)
	case "whoami":
		return cmdWhoami(ctx, cfg, out)
	case "listen":
		return cmdListen(ctx, cfg, args, out)
	case "campaigns":
		return cmdCampaigns(ctx, cfg, args, out)
	default:
		fmt.Fprint(errOut, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// open builds the core and restores any persisted session.
func open(ctx context.Context, cfg *config.Config, opts dashboard.Options) (*dashboard.Dashboard, error) {
	opts.EnablePrometheus = cfg.MetricsAddr != ""
	d, err := dashboard.Setup(cfg, opts)
	if err != nil {
		return nil, err
	}
	d.Session.Restore(ctx)
	return d, nil
}

// offline keeps one-shot commands from dialling the push stream.
type offline struct{}

func (offline) Open(stream.Credentials, stream.Handler) (stream.Socket, error) {
	return offlineSocket{}, nil
}

type offlineSocket struct{}

func (offlineSocket) Emit(string, interface{}) error { return stream.ErrNotConnected }
func (offlineSocket) Close() error                   { return nil }

func cmdLogin(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return fmt.Errorf("login: -email and -password are required")
	}
	d, err := open(ctx, cfg, dashboard.Options{Transport: offline{}})
	if err != nil {
		return err
	}
	defer d.Close()
	user, err := d.Session.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func cmdRegister(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var profile auth.Profile
	fs.StringVar(&profile.Name, "name", "", "display name")
	fs.StringVar(&profile.Email, "email", "", "account email")
	fs.StringVar(&profile.Password, "password", "", "account password")
	fs.StringVar(&profile.Company, "company", "", "company")
	fs.StringVar(&profile.Website, "website", "", "website")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if profile.Name == "" || profile.Email == "" || profile.Password == "" {
		return fmt.Errorf("register: -name, -email and -password are required")
	}
	d, err := open(ctx, cfg, dashboard.Options{Transport: offline{}})
	if err != nil {
		return err
	}
	defer d.Close()
	user, err := d.Session.Register(ctx, profile)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Registered %s <%s>, id %s\n", user.Name, user.Email, user.ID)
	return nil
}

func cmdLogout(ctx context.Context, cfg *config.Config, out io.Writer) error {
	d, err := open(ctx, cfg, dashboard.Options{Transport: offline{}})
	if err != nil {
		return err
	}
	// Close waits for the remote logout
	defer d.Close()
	if !d.Session.Snapshot().IsAuthenticated {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	d.Session.Logout(ctx)
	fmt.Fprintln(out, "Logged out")
	return nil
}

func cmdWhoami(ctx context.Context, cfg *config.Config, out io.Writer) error {
	d, err := open(ctx, cfg, dashboard.Options{Transport: offline{}})
	if err != nil {
		return err
	}
	defer d.Close()
	snap := d.Session.Snapshot()
	if !snap.IsAuthenticated {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	fmt.Fprintf(out, "%s <%s>\n", snap.DisplayName, snap.Email)
	fmt.Fprintf(out, "  id:      %s\n", snap.UserID)
	if snap.Company != "" {
		fmt.Fprintf(out, "  company: %s\n", snap.Company)
	}
	if snap.Website != "" {
		fmt.Fprintf(out, "  website: %s\n", snap.Website)
	}
	return nil
}

func cmdCampaigns(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("campaigns", flag.ContinueOnError)
	status := fs.String("status", "", "only campaigns with this status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := open(ctx, cfg, dashboard.Options{Transport: offline{}})
	if err != nil {
		return err
	}
	defer d.Close()
	if !d.Session.Snapshot().IsAuthenticated {
		return fmt.Errorf("campaigns: not logged in")
	}
	params := url.Values{}
	if *status != "" {
		params.Set("status", *status)
	}
	body, err := d.API.Campaigns(ctx, params)
	if err != nil {
		return err
	}
	var pretty interface{}
	if err := json.Unmarshal(body, &pretty); err != nil {
		_, err = out.Write(body)
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// printer writes forwarded stream events as they arrive.
type printer struct {
	out io.Writer
}

func (p *printer) OnCampaignUpdate(ev *stream.CampaignUpdate) {
	fmt.Fprintf(p.out, "campaign %s: %s\n", ev.CampaignID, ev.Status)
}

func (p *printer) OnContentGenerated(ev *stream.ContentGenerated) {
	fmt.Fprintf(p.out, "content %s generated for campaign %s\n", ev.ContentID, ev.CampaignID)
}

func (p *printer) OnUnknown(ev *stream.Unknown) {
	fmt.Fprintf(p.out, "%s: %s\n", ev.Event, ev.Data)
}

func cmdListen(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	duration := fs.Duration("for", 0, "stop after this long (default: until interrupted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out = &syncWriter{w: out}
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}
	d, err := open(ctx, cfg, dashboard.Options{Listener: &printer{out}})
	if err != nil {
		return err
	}
	defer d.Close()
	if !d.Session.Snapshot().IsAuthenticated {
		return fmt.Errorf("listen: not logged in")
	}

	var last time.Time
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		entries := d.Stream.Notifications()
		// newest first, print oldest unseen first
		for i := len(entries) - 1; i >= 0; i-- {
			n := entries[i]
			if !n.ReceivedAt.After(last) {
				continue
			}
			last = n.ReceivedAt
			kind := n.Kind
			if kind == "" {
				kind = "info"
			}
			fmt.Fprintf(out, "[%s] %s %s\n", kind, n.Title, n.Message)
		}
	}
}

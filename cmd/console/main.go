// Command console signs in against the console API and reports what the
// session may reach.
//
//	console sign-up -email ada@example.com -password secret123
//	console whoami  -email ada@example.com
//	console guard   -email ada@example.com /projects /users
//	console watch   -email ada@example.com
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"showroom/internal/client"
	"showroom/internal/config"
	"showroom/internal/guard"
	"showroom/internal/logger"
	"showroom/internal/session"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stderr)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "sign-up":
		err = signUp(ctx, cfg, log, args)
	case "whoami":
		err = whoami(ctx, cfg, log, args)
	case "guard":
		err = decide(ctx, cfg, log, args)
	case "watch":
		err = watch(ctx, cfg, log, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: console <sign-up|whoami|guard|watch> -email EMAIL [-password PASSWORD] [paths...]")
	fmt.Fprintln(os.Stderr, "the password falls back to CONSOLE_PASSWORD")
}

type credentials struct {
	email    string
	password string
}

func parse(name string, args []string) (credentials, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var creds credentials
	fs.StringVar(&creds.email, "email", "", "account email")
	fs.StringVar(&creds.password, "password", os.Getenv("CONSOLE_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return creds, nil, err
	}
	if creds.email == "" || creds.password == "" {
		return creds, nil, fmt.Errorf("%s: -email and a password are required", name)
	}
	return creds, fs.Args(), nil
}

func newClient(cfg *config.ClientConfig, log *slog.Logger, opts ...client.Option) *client.Client {
	opts = append([]client.Option{
		client.WithLogger(log),
		client.WithRefreshInterval(cfg.RefreshInterval),
	}, opts...)
	return client.New(cfg.APIURL, opts...)
}

// signedIn starts a machine, signs in and waits until the session settles.
func signedIn(ctx context.Context, cfg *config.ClientConfig, log *slog.Logger, creds credentials, opts ...client.Option) (*session.Machine, *client.Client, error) {
	c := newClient(cfg, log, opts...)
	m := session.NewMachine(c, c, session.WithLogger(log), session.WithFetchTimeout(cfg.Timeout))
	m.Start(ctx)

	if err := m.SignIn(ctx, creds.email, creds.password); err != nil {
		m.Stop()
		c.Close()
		return nil, nil, err
	}
	if err := settle(ctx, m, cfg.Timeout); err != nil {
		m.Stop()
		c.Close()
		return nil, nil, err
	}
	return m, c, nil
}

// settle waits until the machine leaves loading with an identity and no
// profile fetch in flight.
func settle(ctx context.Context, m *session.Machine, timeout time.Duration) error {
	done := make(chan struct{})
	var once bool
	unsubscribe := m.Subscribe(func(s session.State) {
		if !once && s.Phase == session.PhaseAuthenticated && !s.FetchInFlight() {
			once = true
			close(done)
		}
	})
	defer unsubscribe()

	if s := m.State(); s.Phase == session.PhaseAuthenticated && !s.FetchInFlight() {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return fmt.Errorf("session did not settle within %s", timeout)
	}
}

func signUp(ctx context.Context, cfg *config.ClientConfig, log *slog.Logger, args []string) error {
	creds, _, err := parse("sign-up", args)
	if err != nil {
		return err
	}
	c := newClient(cfg, log, client.WithoutEvents())
	defer c.Close()
	if err := c.SignUp(ctx, creds.email, creds.password); err != nil {
		return err
	}
	fmt.Println("account created, check the inbox of", creds.email, "for the confirmation link")
	return nil
}

func whoami(ctx context.Context, cfg *config.ClientConfig, log *slog.Logger, args []string) error {
	creds, _, err := parse("whoami", args)
	if err != nil {
		return err
	}
	m, c, err := signedIn(ctx, cfg, log, creds, client.WithoutEvents())
	if err != nil {
		return err
	}
	defer c.Close()
	defer m.Stop()

	server, err := c.Capabilities(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"local":  m.State().Capabilities(),
		"server": server,
	})
}

func decide(ctx context.Context, cfg *config.ClientConfig, log *slog.Logger, args []string) error {
	creds, paths, err := parse("guard", args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		for _, r := range guard.ConsoleRoutes().Routes() {
			paths = append(paths, r.Prefix)
		}
	}
	m, c, err := signedIn(ctx, cfg, log, creds, client.WithoutEvents())
	if err != nil {
		return err
	}
	defer c.Close()
	defer m.Stop()

	table := guard.ConsoleRoutes()
	state := m.State()
	type row struct {
		Path        string         `json:"path"`
		Requirement string         `json:"requirement"`
		Decision    guard.Decision `json:"decision"`
	}
	rows := make([]row, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, row{
			Path:        p,
			Requirement: table.Lookup(p).String(),
			Decision:    table.Decide(state, p, guard.DefaultPaths()),
		})
	}
	return printJSON(rows)
}

// watch prints every state change until interrupted or signed out elsewhere.
func watch(ctx context.Context, cfg *config.ClientConfig, log *slog.Logger, args []string) error {
	creds, _, err := parse("watch", args)
	if err != nil {
		return err
	}
	m, c, err := signedIn(ctx, cfg, log, creds)
	if err != nil {
		return err
	}
	defer c.Close()
	defer m.Stop()

	ended := make(chan struct{})
	var closed bool
	unsubscribe := m.Subscribe(func(s session.State) {
		_ = printJSON(s.Capabilities())
		if s.Phase == session.PhaseAnonymous && !closed {
			closed = true
			close(ended)
		}
	})
	defer unsubscribe()
	_ = printJSON(m.State().Capabilities())

	select {
	case <-ctx.Done():
		signOutCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		return m.SignOut(signOutCtx)
	case <-ended:
		return nil
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

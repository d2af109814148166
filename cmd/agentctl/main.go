// agentctl signs in against an agentgate server from a terminal and prints
// the agent link.
//
//	agentctl login --email ana@x.com
//	agentctl -s https://gate.example.com signup --name Ana --email ana@x.com
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/bootstrap"
	"github.com/ErlanBelekov/agentgate/internal/client"
	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/session"
	"github.com/akamensky/argparse"
	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// flowKey is constant: one terminal user, one state file.
const flowKey = "cli"

// readPassword is a test seam for the terminal prompt.
var readPassword = func(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "agentgate", "session.json")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	parser := argparse.NewParser("agentctl", "Sign in to an agentgate server and fetch the agent link")
	server := parser.String("s", "server", &argparse.Options{Help: "agentgate server URL", Default: "http://localhost:8080"})
	statePath := parser.String("", "state", &argparse.Options{Help: "Session state file", Default: defaultStatePath()})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Log requests and state transitions", Default: false})

	signupCmd := parser.NewCommand("signup", "Create an account, sign in and fetch the agent link")
	signupName := signupCmd.String("n", "name", &argparse.Options{Help: "Display name", Required: true})
	signupEmail := signupCmd.String("e", "email", &argparse.Options{Help: "Email address", Required: true})
	signupPassword := signupCmd.String("p", "password", &argparse.Options{Help: "Password (prompted when omitted)"})
	signupNickname := signupCmd.String("", "nickname", &argparse.Options{Help: "Nickname"})

	loginCmd := parser.NewCommand("login", "Sign in and fetch the agent link")
	loginEmail := loginCmd.String("e", "email", &argparse.Options{Help: "Email address", Required: true})
	loginPassword := loginCmd.String("p", "password", &argparse.Options{Help: "Password (prompted when omitted)"})

	linkCmd := parser.NewCommand("link", "Fetch a fresh agent link for the stored session")
	statusCmd := parser.NewCommand("status", "Show the stored session")
	logoutCmd := parser.NewCommand("logout", "Forget the stored session")

	if err := parser.Parse(args); err != nil {
		fmt.Fprint(stderr, parser.Usage(err))
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))

	store := session.Open(session.NewFileBackend(*statePath), logger)
	defer func() { _ = store.Close() }()

	api := client.New(*server, nil)
	flows := bootstrap.New(api, api, logger)

	switch {
	case signupCmd.Happened(), loginCmd.Happened():
		in := bootstrap.Input{Mode: bootstrap.ModeLogin}
		password := *loginPassword
		in.Profile.Email = *loginEmail
		if signupCmd.Happened() {
			in.Mode = bootstrap.ModeSignup
			password = *signupPassword
			in.Profile = domain.SignupProfile{Name: *signupName, Email: *signupEmail, Nickname: *signupNickname}
		}
		if password == "" {
			p, err := readPassword(stderr)
			if err != nil {
				fmt.Fprintln(stderr, err)
				return 1
			}
			password = p
		}
		in.Profile.Password = password

		res, err := flows.Submit(ctx, flowKey, store, in)
		return report(stdout, stderr, res, err)

	case linkCmd.Happened():
		res, err := flows.RetryLink(ctx, flowKey, store)
		return report(stdout, stderr, res, err)

	case statusCmd.Happened():
		if _, ok := store.Load(ctx); !ok {
			fmt.Fprintln(stdout, "not signed in")
			return 1
		}
		fmt.Fprintln(stdout, "signed in")
		if link, ok := store.LoadLink(ctx); ok {
			fmt.Fprintln(stdout, link.SignedURL)
		}
		return 0

	case logoutCmd.Happened():
		if err := store.Clear(ctx); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintln(stdout, "signed out")
		return 0
	}

	fmt.Fprint(stderr, parser.Usage(nil))
	return 2
}

func report(stdout, stderr io.Writer, res *bootstrap.Result, err error) int {
	if err != nil {
		if errors.Is(err, bootstrap.ErrAbandoned) {
			fmt.Fprintln(stderr, "interrupted")
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}

	switch res.State {
	case bootstrap.Complete:
		fmt.Fprintln(stdout, res.Link.SignedURL)
		return 0
	case bootstrap.LinkPending:
		fmt.Fprintf(stderr, "signed in, but no agent link (%s): %s\nrun `agentctl link` to retry\n", res.Kind(), res.Message())
		return 3
	default:
		fmt.Fprintf(stderr, "%s: %s\n", res.Kind(), res.Message())
		return 1
	}
}

package command

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aelexs/authsession/internal/domain"
	"github.com/aelexs/authsession/internal/errmap"
	"github.com/aelexs/authsession/internal/session"
	"github.com/aelexs/authsession/internal/token"
)

// Shown once registration succeeds. Registration never signs in.
const msgRegistered = "Registration successful! You can now log in."

// Shown when a command needs a session and there is none.
const msgNotLoggedIn = "Not logged in"

type stateResult struct {
	State session.State `json:"state" yaml:"state"`
}

type registerResult struct {
	Message  string `json:"message" yaml:"message"`
	Response any    `json:"response,omitempty" yaml:"response,omitempty"`
}

type statusResult struct {
	State     session.State `json:"state" yaml:"state"`
	Token     *token.Info   `json:"token,omitempty" yaml:"token,omitempty"`
	Expired   bool          `json:"expired" yaml:"expired"`
	ExpiresIn string        `json:"expires_in,omitempty" yaml:"expires_in,omitempty"`
	Watchable bool          `json:"watchable" yaml:"watchable"`
}

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and store the issued tokens",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
			&cli.StringFlag{Name: "password", Usage: "Account password", EnvVars: []string{"AUTHSESSION_PASSWORD"}},
			&cli.BoolFlag{Name: "password-stdin", Usage: "Read the password from stdin"},
		},
		Action: withSession(loginAction),
	}
}

func loginAction(c *cli.Context) error {
	rt := runtimeFrom(c)

	form := LoginForm{Email: strings.TrimSpace(c.String("email")), Password: c.String("password")}
	if c.Bool("password-stdin") {
		lines, err := readLines(c.App.Reader, 1)
		if err != nil {
			return cli.Exit(err.Error(), errmap.ExitUsage)
		}
		form.Password = lines[0]
	}
	if err := form.Validate(); err != nil {
		return cli.Exit(formMessage(err, loginFormFields...), errmap.ExitUsage)
	}

	m := session.FromContext(c.Context)
	if err := m.Login(c.Context, form.Email, form.Password); err != nil {
		return failure(rt, "login", errmap.LoginClassifier, err)
	}

	return render(c.App.Writer, rt.format, stateResult{State: m.State()}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "Logged in as %s\n", form.Email)
		return err
	})
}

// RegisterCommand returns the register command.
func RegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account (does not sign in)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Username", Required: true},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name", Required: true},
			&cli.StringFlag{Name: "password", Usage: "Password"},
			&cli.StringFlag{Name: "password-confirm", Usage: "Password confirmation"},
			&cli.BoolFlag{Name: "password-stdin", Usage: "Read password and confirmation from the first two lines of stdin"},
		},
		Action: withSession(registerAction),
	}
}

func registerAction(c *cli.Context) error {
	rt := runtimeFrom(c)

	form := RegisterForm{
		Email:     strings.TrimSpace(c.String("email")),
		Username:  strings.TrimSpace(c.String("username")),
		Name:      strings.TrimSpace(c.String("name")),
		Password:  c.String("password"),
		Password2: c.String("password-confirm"),
	}
	if c.Bool("password-stdin") {
		lines, err := readLines(c.App.Reader, 2)
		if err != nil {
			return cli.Exit(err.Error(), errmap.ExitUsage)
		}
		form.Password, form.Password2 = lines[0], lines[1]
	}
	if err := form.Validate(); err != nil {
		return cli.Exit(formMessage(err, registerFormFields...), errmap.ExitUsage)
	}

	m := session.FromContext(c.Context)
	raw, err := m.Register(c.Context, form.Payload())
	if err != nil {
		return failure(rt, "register", errmap.RegisterClassifier, err)
	}

	res := registerResult{Message: msgRegistered, Response: rawDocument(raw)}
	return render(c.App.Writer, rt.format, res, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, msgRegistered)
		return err
	})
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Clear the stored tokens",
		Action: withSession(logoutAction),
	}
}

func logoutAction(c *cli.Context) error {
	rt := runtimeFrom(c)
	m := session.FromContext(c.Context)
	m.Logout(c.Context)

	return render(c.App.Writer, rt.format, stateResult{State: m.State()}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, "Logged out")
		return err
	})
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show the session state and the stored access token claims",
		Action: withSession(statusAction),
	}
}

func statusAction(c *cli.Context) error {
	rt := runtimeFrom(c)
	m := session.FromContext(c.Context)
	clock := domain.RealClock{}

	res := statusResult{State: m.State(), Watchable: m.IsWatchable()}
	access, err := m.AccessToken(c.Context)
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
	case err != nil:
		return cli.Exit(fmt.Sprintf("status: %v", err), errmap.ExitCode(err))
	default:
		info, err := token.Inspect(access)
		if err != nil {
			// Opaque tokens are valid credentials, there is just nothing to show.
			rt.logger.Debug("access token not inspectable", "error", err)
			break
		}
		res.Token = &info
		res.Expired = info.Expired(clock)
		if d := info.ExpiresIn(clock); d > 0 {
			res.ExpiresIn = d.Round(time.Second).String()
		}
	}

	return render(c.App.Writer, rt.format, res, func(w io.Writer) error {
		fmt.Fprintf(w, "State:     %s\n", res.State)
		if res.Token != nil {
			if res.Token.Subject != "" {
				fmt.Fprintf(w, "Subject:   %s\n", res.Token.Subject)
			}
			if res.Token.UserID != "" {
				fmt.Fprintf(w, "User ID:   %s\n", res.Token.UserID)
			}
			switch {
			case res.Expired:
				fmt.Fprintln(w, "Expires:   expired")
			case res.ExpiresIn != "":
				fmt.Fprintf(w, "Expires:   in %s\n", res.ExpiresIn)
			}
		}
		_, err := fmt.Fprintf(w, "Watchable: %t\n", res.Watchable)
		return err
	})
}

// WhoamiCommand returns the whoami command.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Fetch the profile of the signed-in user",
		Action: withSession(whoamiAction),
	}
}

func whoamiAction(c *cli.Context) error {
	rt := runtimeFrom(c)
	m := session.FromContext(c.Context)

	access, err := m.AccessToken(c.Context)
	if errors.Is(err, domain.ErrNotAuthenticated) {
		return cli.Exit(msgNotLoggedIn, errmap.ExitNoPerm)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("whoami: %v", err), errmap.ExitCode(err))
	}

	profile, err := rt.identity.Profile(c.Context, access)
	if err != nil {
		return failure(rt, "whoami", errmap.DefaultClassifier, err)
	}

	return render(c.App.Writer, rt.format, rawDocument(profile.Raw), func(w io.Writer) error {
		fmt.Fprintf(w, "Email:    %s\n", profile.Email)
		fmt.Fprintf(w, "Username: %s\n", profile.Username)
		_, err := fmt.Fprintf(w, "Name:     %s\n", profile.Name)
		return err
	})
}

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Follow session changes made by other processes sharing the store",
		Action: withSession(watchAction),
	}
}

func watchAction(c *cli.Context) error {
	rt := runtimeFrom(c)
	m := session.FromContext(c.Context)
	if !m.IsWatchable() {
		return cli.Exit(fmt.Sprintf("watch: %v (backend %s)", domain.ErrWatchUnsupported, rt.cfg.Store.Backend), errmap.ExitUsage)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates, unsubscribe := m.Subscribe()
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Watch(ctx)
	})
	g.Go(func() error {
		last := m.State()
		if err := printState(c, rt.format, last); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return nil
			case s, ok := <-updates:
				if !ok {
					return nil
				}
				if s == last {
					continue
				}
				last = s
				if err := printState(c, rt.format, s); err != nil {
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return cli.Exit(fmt.Sprintf("watch: %v", err), errmap.ExitCode(err))
	}
	return nil
}

func printState(c *cli.Context, format Format, s session.State) error {
	return render(c.App.Writer, format, stateResult{State: s}, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "state: %s\n", s)
		return err
	})
}

// failure renders err through the form's classifier and picks the exit
// code from the underlying error.
func failure(rt *runtime, op string, cls errmap.Classifier, err error) error {
	classified := cls.Classify(err)
	rt.logger.Debug(op+" failed",
		"kind", classified.Kind.String(),
		"status", classified.StatusCode,
		"field", classified.Field,
		"retryable", domain.IsRetryable(err),
		"error", err,
	)
	return cli.Exit(classified.Message(), errmap.ExitCode(err))
}

// readLines reads n lines from r, trimming line endings.
func readLines(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]string, 0, n)
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if len(lines) < n {
		return nil, fmt.Errorf("expected %d line(s) on stdin, got %d", n, len(lines))
	}
	return lines, nil
}

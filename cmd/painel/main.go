// Command painel is the terminal dashboard. Supervisors see and update every
// maintenance request; operators follow their own and file new ones.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/erazemk/manutencao/internal/client"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/session"
	"github.com/erazemk/manutencao/internal/tui"
)

const envPrefix = "PAINEL_"

type options struct {
	server   string
	role     string
	login    string
	password string
	token    string
	logPath  string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "painel: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var opts options
	fs := pflag.NewFlagSet("painel", pflag.ContinueOnError)
	fs.StringVarP(&opts.server, "server", "s", env("SERVER", "http://localhost:8080"), "server URL")
	fs.StringVarP(&opts.role, "role", "r", env("ROLE", string(model.RoleOperator)), "role: operator or supervisor")
	fs.StringVarP(&opts.login, "login", "u", env("LOGIN", ""), "operator ID or supervisor login")
	fs.StringVarP(&opts.password, "password", "p", env("PASSWORD", ""), "supervisor password")
	fs.StringVarP(&opts.token, "token", "t", env("TOKEN", ""), "resume with a token from an earlier login instead of logging in")
	fs.StringVarP(&opts.logPath, "log", "l", env("LOG", "painel.log"), "log file")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	role, ok := model.ParseRole(opts.role)
	if !ok {
		return fmt.Errorf("unknown role %q", opts.role)
	}
	if opts.token == "" {
		if opts.login == "" {
			return errors.New("--login is required")
		}
		if role.NeedsSecret() && opts.password == "" {
			return errors.New("--password is required for supervisors")
		}
	}

	// The terminal belongs to the dashboard, so logs only go to the file.
	logFile, err := os.OpenFile(opts.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	clientOpts := []client.Option{client.WithLogger(logger)}
	if opts.token != "" {
		clientOpts = append(clientOpts, client.WithToken(opts.token))
	}
	api := client.New(opts.server, clientOpts...)

	ctx, cancel := context.WithTimeout(context.Background(), client.DefaultTimeout)
	if err := api.Ping(ctx); err != nil {
		cancel()
		return fmt.Errorf("server %s unreachable: %w", opts.server, err)
	}
	user, err := signIn(ctx, api, opts, role)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("signed in", "login", user.Login, "role", user.Role, "resumed", opts.token != "")

	bridge := tui.NewBridge()
	defer bridge.Close()
	sess := session.New(api, *user, session.Options{
		OnEvent: bridge.OnEvent,
		Logger:  logger,
	})

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	if err := sess.Start(runCtx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	_, runErr := tea.NewProgram(tui.New(sess, bridge), tea.WithAltScreen()).Run()

	stop()
	sess.Close()
	sess.Wait()

	// A token passed in belongs to whoever issued it; only revoke our own.
	if opts.token == "" {
		logoutCtx, cancelLogout := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelLogout()
		if err := api.Logout(logoutCtx); err != nil {
			logger.Warn("logout failed", "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("running dashboard: %w", runErr)
	}
	return nil
}

// signIn resumes the session behind opts.token, or logs in.
func signIn(ctx context.Context, api *client.Client, opts options, role model.Role) (*model.User, error) {
	if opts.token != "" {
		user, err := api.Me(ctx)
		if errors.Is(err, model.ErrCredentials) {
			return nil, errors.New("token inválido ou expirado")
		}
		if err != nil {
			return nil, fmt.Errorf("resuming session: %w", err)
		}
		return user, nil
	}

	res, err := api.Login(ctx, role, opts.login, opts.password)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if !res.OK || res.User == nil {
		msg := res.Message
		if msg == "" {
			msg = "credenciais inválidas"
		}
		return nil, errors.New(msg)
	}
	return res.User, nil
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return fallback
}

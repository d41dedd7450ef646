// Package admin provides the paperclip-admin command-line tool.
//
// It uses urfave/cli/v2 for command parsing. Offline commands (password and
// token tools) need only the secret key; the database commands reach
// PostgreSQL directly through the server's repositories.
package admin

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/paperclip/paperclip/internal/server/config"
	"github.com/paperclip/paperclip/internal/server/repositories/repomanager"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

// App creates the CLI application.
func App() *cli.App {
	defaults := &config.Config{}
	defaults.LoadDefaults()

	return &cli.App{
		Name:    "paperclip-admin",
		Usage:   "PaperClip operator tooling",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "secret",
				Usage:   "HMAC secret used to sign session tokens",
				EnvVars: []string{"PAPERCLIP_SECRET_KEY"},
				Value:   defaults.SecretKey,
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "PostgreSQL DSN",
				EnvVars: []string{"PAPERCLIP_DATABASE_DSN"},
				Value:   defaults.DatabaseDSN,
			},
			&cli.BoolFlag{
				Name:  "password-stdin",
				Usage: "Read passwords from stdin instead of the terminal",
			},
		},
		Commands: []*cli.Command{
			HashPasswordCommand(),
			VerifyPasswordCommand(),
			IssueTokenCommand(),
			VerifyTokenCommand(),
			MigrateCommand(),
			CreateUserCommand(),
		},
	}
}

// promptPassword reads a password without echo, or one line from the app's
// reader when --password-stdin is set.
func promptPassword(c *cli.Context, prompt string) (string, error) {
	if c.Bool("password-stdin") {
		line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(c.App.ErrWriter, prompt)
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

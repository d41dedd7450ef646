package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/server/auth"
	"github.com/paperclip/paperclip/internal/server/repositories/repomanager"
	"github.com/paperclip/paperclip/internal/server/services"
)

// MigrateCommand applies pending schema migrations.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Apply pending database migrations",
		Action: migrate,
	}
}

// CreateUserCommand registers an account without going through the API.
func CreateUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "Create a user account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Aliases:  []string{"e"},
				Usage:    "Account email",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Display name",
			},
		},
		Action: createUser,
	}
}

func withDB(c *cli.Context, fn func(*sql.DB, repomanager.RepositoryManager) error) error {
	db, err := openDB(c.String("dsn"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return fn(db, newRepositoryManager())
}

func migrate(c *cli.Context) error {
	return withDB(c, func(db *sql.DB, rm repomanager.RepositoryManager) error {
		if err := rm.RunMigrations(c.Context, db); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "migrations applied")
		return nil
	})
}

func createUser(c *cli.Context) error {
	pw, err := promptPassword(c, "Password: ")
	if err != nil {
		return err
	}

	cd, err := codec(c)
	if err != nil {
		return err
	}

	return withDB(c, func(db *sql.DB, rm repomanager.RepositoryManager) error {
		us, err := services.NewUserService(db, rm, auth.NewHasher(), cd, time.Hour)
		if err != nil {
			return err
		}

		res, err := us.Register(c.Context, c.String("email"), c.String("name"), pw)
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return fmt.Errorf("user %s already exists", c.String("email"))
			}
			return err
		}
		fmt.Fprintf(c.App.Writer, "created user %s (%s)\n", res.User.ID, res.User.Email)
		return nil
	})
}

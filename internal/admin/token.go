package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/paperclip/paperclip/internal/server/auth"
)

// IssueTokenCommand signs a session token for a subject.
func IssueTokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "issue-token",
		Usage: "Sign a session token",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "sub",
				Usage:    "Subject (user id)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "email",
				Usage: "Optional email claim",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: time.Hour,
			},
		},
		Action: issueToken,
	}
}

// VerifyTokenCommand checks a token and prints its claims.
func VerifyTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify-token",
		Usage:     "Verify a session token and print its claims",
		ArgsUsage: "TOKEN",
		Action:    verifyToken,
	}
}

func codec(c *cli.Context) (*auth.Codec, error) {
	return auth.NewCodec([]byte(c.String("secret")))
}

func issueToken(c *cli.Context) error {
	cd, err := codec(c)
	if err != nil {
		return err
	}

	claims := auth.Claims{auth.ClaimSubject: c.String("sub")}
	if email := c.String("email"); email != "" {
		claims[auth.ClaimEmail] = email
	}

	tok, err := cd.Issue(claims, c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, tok)
	return nil
}

func verifyToken(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: verify-token TOKEN")
	}

	cd, err := codec(c)
	if err != nil {
		return err
	}
	claims, err := cd.Verify(c.Args().First())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(claims)
}

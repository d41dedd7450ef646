package admin

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/paperclip/paperclip/internal/server/auth"
)

var errPasswordMismatch = errors.New("password does not match")

// HashPasswordCommand prints a stored credential for a password.
func HashPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:   "hash-password",
		Usage:  "Hash a password into the salt:digest form stored in users.credential",
		Action: hashPassword,
	}
}

// VerifyPasswordCommand checks a password against a stored credential.
func VerifyPasswordCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify-password",
		Usage:     "Check a password against a stored credential",
		ArgsUsage: "CREDENTIAL",
		Action:    verifyPassword,
	}
}

func hashPassword(c *cli.Context) error {
	pw, err := promptPassword(c, "Password: ")
	if err != nil {
		return err
	}
	if pw == "" {
		return errors.New("password must not be empty")
	}

	credential, err := auth.NewHasher().Hash(pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, credential)
	return nil
}

func verifyPassword(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: verify-password CREDENTIAL")
	}

	pw, err := promptPassword(c, "Password: ")
	if err != nil {
		return err
	}
	if !auth.NewHasher().Verify(pw, c.Args().First()) {
		return errPasswordMismatch
	}
	fmt.Fprintln(c.App.Writer, "ok")
	return nil
}

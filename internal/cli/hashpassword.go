package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"calibration-engine/internal/auth"
)

func newHashPasswordCommand() *cobra.Command {
	var cost int
	var user string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin for CREDENTIALS",
		Long: `Reads one line from stdin and prints its bcrypt hash. With --user the
output is a ready-to-use "user:hash" entry.

Examples:
  printf '%s' "$PASSWORD" | trainer hash-password --user sensor-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			if user != "" {
				if strings.ContainsAny(user, ":,\n") {
					return fmt.Errorf("invalid user %q", user)
				}
				hash = user + ":" + hash
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	cmd.Flags().StringVar(&user, "user", "", "prefix the hash with this username")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password on stdin")
	}
	return line, nil
}

package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	goIssuer "github.com/MrEthical07/goIssuer"
)

func newHashPasswordCmd() *cobra.Command {
	var algorithm string
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long:  "Reads one line from stdin and prints its hash, for seeding an identity store.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return errors.New("no password on stdin")
			}
			pw := strings.TrimRight(line, "\r\n")

			pcfg := goIssuer.DefaultConfig().Password
			if algorithm != "" {
				pcfg.Algorithm = algorithm
			}
			if len(pw) < pcfg.MinLength {
				return fmt.Errorf("password must be at least %d bytes", pcfg.MinLength)
			}
			h, err := goIssuer.NewPasswordHasher(pcfg)
			if err != nil {
				return err
			}
			hash, err := h.Hash(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "argon2id or scrypt (default argon2id)")
	return cmd
}

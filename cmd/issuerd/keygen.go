package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goIssuer/jwt"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key",
		Long:  "Prints ISSUER_SIGNING_KEY (base64 seed) and ISSUER_KEY_ID lines ready for a .env file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ISSUER_SIGNING_KEY=%s\n", base64.StdEncoding.EncodeToString(priv.Seed()))
			fmt.Fprintf(out, "ISSUER_KEY_ID=%s\n", jwt.Thumbprint(pub))
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/cracks/internal/api"
	"github.com/soaringjerry/cracks/internal/middleware"
	"github.com/soaringjerry/cracks/internal/models"
	"github.com/soaringjerry/cracks/internal/services"
	"github.com/soaringjerry/cracks/internal/utils"
)

// submitCmd runs one submission against the configured store, the way the
// API would, and prints the outcome.
func submitCmd(c *cli) *cobra.Command {
	var target, signature, payload string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Merge a JSON payload into the record of a signature",
		Example: `  cracks submit --target ice --signature abc1-7f3e-44d0-z9kk --payload '{"q1":"yes"}'
  echo '{"q1":"yes"}' | cracks submit --target ice --signature abc1-7f3e-44d0-z9kk --payload -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := c.cfg.Target(target)
			if !ok {
				return fmt.Errorf("unknown target %q", target)
			}
			raw := []byte(payload)
			if payload == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				raw = b
			}
			p, err := models.DecodePayload(raw)
			if err != nil {
				return fmt.Errorf("payload: %w", err)
			}

			store, err := openStore(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer store.Close()

			agg := services.NewResponseAggregator(api.NewRecordStoreAdapter(store), t, services.WithLogger(c.logger))
			res, err := agg.Submit(cmd.Context(), signature, p)
			out := services.Classify(err)
			fmt.Fprintln(cmd.OutOrStdout(), utils.T("en", out.MessageKey()))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"signature":    res.Masked,
				"prior_exists": res.PriorExists,
				"payload":      res.Payload,
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "ice", "Target name")
	cmd.Flags().StringVar(&signature, "signature", "", "Visitor signature")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON object to merge, or - for stdin")
	return cmd
}

// tokenCmd mints a visitor token, as the access-key service does.
func tokenCmd(c *cli) *cobra.Command {
	var signature string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a visitor bearer token for a signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = c.cfg.Auth.TokenTTL
			}
			tok, err := middleware.NewAuthenticator(c.cfg.Auth.JWTSecret).SignToken(signature, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&signature, "signature", "", "Visitor signature")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default from config)")
	return cmd
}

func hashPasswordCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash for CRACKS_ADMIN_PASSWORD_HASH",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				pw = strings.TrimRight(string(b), "\r\n")
			}
			if pw == "" {
				return errors.New("password required")
			}
			hash, err := middleware.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

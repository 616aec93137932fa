package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/session-seat-reservation/internal/middleware"
	"github.com/iliyamo/session-seat-reservation/internal/utils"
)

// NewTokenCommand creates the token command, which mints an access token
// signed with JWT_SECRET for local testing.
func NewTokenCommand() *cobra.Command {
	var uid, role string
	var ttl time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "token --uid <attendee>",
		Short: "Mint a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			role = strings.ToUpper(role)
			if role != middleware.RoleAttendee && role != middleware.RoleAdmin {
				return fmt.Errorf("invalid role %q: must be %s or %s", role, middleware.RoleAttendee, middleware.RoleAdmin)
			}
			tok, err := utils.NewAccessToken(secret, uid, role, ttl)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tok)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "attendee id (token subject)")
	cmd.Flags().StringVar(&role, "role", middleware.RoleAttendee, "ATTENDEE or ADMIN")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print token and expiry as JSON")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}

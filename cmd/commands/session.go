package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/go-portal-shell/internal/container"
	"github.com/FACorreiaa/go-portal-shell/internal/session"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or clear the persisted session",
	}
	cmd.AddCommand(sessionShowCmd(), sessionClearCmd())
	return cmd
}

type sessionOutput struct {
	Authenticated bool                 `json:"authenticated"`
	User          *session.UserProfile `json:"user"`
	HasToken      bool                 `json:"hasToken"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	Theme         string               `json:"theme"`
	Language      string               `json:"language"`
}

func sessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the persisted session without its token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container.NewContainer(cmd.Context(), &cfg, logger)
			if err != nil {
				return err
			}
			defer c.Close(context.Background())

			st := c.Session.Snapshot()
			out := sessionOutput{
				Authenticated: st.IsAuthenticated(),
				User:          st.User,
				HasToken:      st.Token != nil,
				Theme:         string(c.Theme.Get()),
				Language:      string(c.Language.Get()),
			}
			if st.Token != nil {
				if exp, ok := session.TokenExpiry(*st.Token); ok {
					out.ExpiresAt = &exp
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func sessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Log out: persist the empty session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := container.NewContainer(cmd.Context(), &cfg, logger)
			if err != nil {
				return err
			}
			c.Session.Logout()
			if err := c.Close(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Session cleared")
			return nil
		},
	}
}

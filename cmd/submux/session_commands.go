package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"submux/internal/config"
	"submux/internal/intake"
	"submux/internal/logging"
	"submux/internal/session"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and clear per-user sessions",
	}
	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionEraseCommand(ctx))
	return sessionCmd
}

func openStore(ctx *commandContext) (*config.Config, *session.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := session.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return cfg, store, nil
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if sessions == nil {
					sessions = []*session.Session{}
				}
				return writeJSON(cmd, sessions)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No open sessions")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"User", "Video", "Subtitle", "Output", "Idle"},
				sessionRows(sessions, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func sessionRows(sessions []*session.Session, now time.Time) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		video := "-"
		if sess.Video != nil {
			video = sess.Video.OriginalName
		}
		subtitle := "-"
		if sess.Subtitle != nil {
			subtitle = sess.Subtitle.Ext()
		}
		output := sess.OutputName
		if output == "" {
			output = "-"
		}
		rows = append(rows, []string{
			sess.UserID,
			video,
			subtitle,
			output,
			now.Sub(sess.UpdatedAt).Round(time.Minute).String(),
		})
	}
	return rows
}

type sessionDetail struct {
	*session.Session
	Missing  []string         `json:"missing"`
	Settings session.Settings `json:"settings"`
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user>",
		Short: "Show one session with its resolved encoding settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("no session for user %s", args[0])
			}
			return writeJSON(cmd, sessionDetail{
				Session:  sess,
				Missing:  sess.Missing(),
				Settings: sess.Preferences.Resolve(session.ConfiguredSettings(cfg)),
			})
		},
	}
}

func newSessionEraseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "erase <user>",
		Short: "Delete a session and its uploaded files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := requireArg(args[0], "user")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var removed bool
			running, err := serviceRunning(cfg)
			if err != nil {
				return err
			}
			if running {
				client, err := newAPIClient(cfg)
				if err != nil {
					return err
				}
				removed, err = client.discard(cmd.Context(), user)
				if err != nil {
					return err
				}
			} else {
				_, store, err := openStore(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				removed, err = intake.New(cfg, store, logging.NewNop()).Discard(cmd.Context(), user)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintf(out, "No session for user %s\n", user)
				return nil
			}
			fmt.Fprintf(out, "Erased session for user %s\n", user)
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Wang-tianhao/vibrant-session-gate/mirror"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the session and print every state change",
		Long: `Mount a session mirror over the local session and print each transition
until interrupted. The session is refreshed shortly before it expires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			m := mirror.New(client,
				mirror.WithLogger(opts.logger(cmd)),
				mirror.WithOnChange(func(s mirror.Snapshot) {
					if user, ok := s.Principal(); ok {
						fmt.Fprintf(out, "%s %s %s\n", time.Now().Format(time.TimeOnly), s.State(), user.Email)
						return
					}
					fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), s.State())
				}),
			)
			ctx := cmd.Context()
			if err := m.Mount(ctx); err != nil {
				return err
			}
			defer m.Unmount()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					// Refreshes near expiry; the mirror hears the resulting event
					_, _ = client.GetSession(ctx)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "How often to check the session")
	return cmd
}

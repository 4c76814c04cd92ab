// Package cli implements the authctl command tree.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
)

// globalOptions are shared by every subcommand
type globalOptions struct {
	url         string
	anonKey     string
	sessionFile string
	verbose     bool
}

// NewRootCmd builds a fresh authctl command tree
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "authctl",
		Short: "Sign in to the hosted auth provider from a terminal",
		Long: `authctl drives the same auth provider as the session gate from the command line.

The session is stored in a local JSON file (0600) and refreshed on use.

Environment:
  AUTH_URL       provider base URL, e.g. https://ref.supabase.co/auth/v1
  AUTH_ANON_KEY  public API key
  .env in the working directory is loaded first when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.url, "url", "", "Auth provider base URL (default $AUTH_URL)")
	root.PersistentFlags().StringVar(&opts.anonKey, "anon-key", "", "Auth provider API key (default $AUTH_ANON_KEY)")
	root.PersistentFlags().StringVar(&opts.sessionFile, "session-file", "", "Session file (default $HOME/.config/sessiongate/session.json)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log client activity to stderr")

	root.AddCommand(
		newLoginCmd(opts),
		newSignupCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// ExecuteContext runs authctl with ctx
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// resolve fills unset flags from the environment
func (o *globalOptions) resolve(cmd *cobra.Command) error {
	// A missing .env is normal
	_ = godotenv.Load(".env")

	if o.url == "" {
		o.url = os.Getenv("AUTH_URL")
	}
	if o.anonKey == "" {
		o.anonKey = os.Getenv("AUTH_ANON_KEY")
	}
	if o.sessionFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home directory: %w", err)
		}
		o.sessionFile = filepath.Join(home, ".config", "sessiongate", "session.json")
	}
	if o.url == "" {
		return fmt.Errorf("--url or AUTH_URL is required")
	}
	return nil
}

func (o *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// client returns a provider client persisting its session to the session file
func (o *globalOptions) client(cmd *cobra.Command) (*authclient.Client, error) {
	return authclient.New(o.url, o.anonKey,
		authclient.WithStore(authclient.NewFileStore(o.sessionFile)),
		authclient.WithLogger(o.logger(cmd)),
	)
}

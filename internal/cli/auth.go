package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Wang-tianhao/vibrant-session-gate/authclient"
	"github.com/Wang-tianhao/vibrant-session-gate/forms"
	"github.com/Wang-tianhao/vibrant-session-gate/mirror"
)

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with email and password and store the session locally.

The password may also be given in AUTHCTL_PASSWORD.

Examples:
  authctl login --email user@example.com --password 'Secret1!'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("AUTHCTL_PASSWORD")
			}
			in := forms.LoginInput{Email: email, Password: password}
			if err := in.Validate(); err != nil {
				return err
			}

			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			session, err := client.SignInWithPassword(cmd.Context(), in.Email, in.Password)
			if err != nil {
				return fmt.Errorf("login failed: %s", authclient.UserMessage(err))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged in successfully")
			if session.User != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as: %s\n", session.User.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd(opts *globalOptions) *cobra.Command {
	var in forms.SignupInput
	var redirectTo string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long: `Create an account with the auth provider.

When the provider requires email confirmation no session is stored; confirm the
address and then run 'authctl login'.

Examples:
  authctl signup --first-name Ada --last-name Lovelace --email ada@example.com --password 'Secret1!'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.Password == "" {
				in.Password = os.Getenv("AUTHCTL_PASSWORD")
			}
			in.ConfirmPassword = in.Password
			if err := in.Validate(); err != nil {
				return err
			}

			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			result, err := client.SignUp(cmd.Context(), authclient.SignUpParams{
				Email:      in.Email,
				Password:   in.Password,
				Data:       in.Metadata(),
				RedirectTo: redirectTo,
			})
			if err != nil {
				return fmt.Errorf("signup failed: %s", authclient.UserMessage(err))
			}

			if result.Session != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Signed up successfully")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Account created. Please check your email to confirm, then log in.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password")
	cmd.Flags().StringVar(&redirectTo, "redirect-to", "", "Where the confirmation link lands")
	return cmd
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the local session",
		Long: `Sign out at the provider, then remove the local session.

The local session is removed even when the provider cannot be reached.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			session, err := client.Store().Load(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if session == nil {
				fmt.Fprintln(out, "Not logged in.")
				return nil
			}

			m := mirror.New(client,
				mirror.WithLogger(opts.logger(cmd)),
				mirror.WithLoginPath("login"),
				mirror.WithNavigator(mirror.NavigatorFunc(func(next string) {
					fmt.Fprintln(out, "Logged out successfully.")
					fmt.Fprintf(out, "Sign in again with: authctl %s\n", next)
				})),
			)
			if err := m.Mount(ctx); err != nil {
				return err
			}
			defer m.Unmount()

			select {
			case <-m.Ready():
			case <-ctx.Done():
				return ctx.Err()
			}

			if err := m.SignOut(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: provider sign-out failed: %s\n", authclient.UserMessage(err))
			}
			return nil
		},
	}
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			user, err := client.GetUser(cmd.Context())
			if errors.Is(err, authclient.ErrNoSession) {
				return fmt.Errorf("not logged in")
			}
			if err != nil {
				return fmt.Errorf("fetch user: %s", authclient.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(user)
			}
			fmt.Fprintf(out, "Name:     %s\n", user.DisplayName())
			fmt.Fprintf(out, "Email:    %s\n", user.Email)
			fmt.Fprintf(out, "User ID:  %s\n", user.ID)
			if p := user.ProviderName(); p != "" {
				fmt.Fprintf(out, "Provider: %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the user as JSON")
	return cmd
}

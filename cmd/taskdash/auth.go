package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"taskdash/cmd/identity"
	"taskdash/cmd/internal/app"
	"taskdash/cmd/internal/auth/session"
)

var errNotSignedIn = errors.New("not signed in")

func loginCmd(opts *globalOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and store the session",
		Long: `Sign in with a username and password.

The password is taken from --password, then $TASKDASH_PASSWORD, then the
first line of standard input.

Examples:
  taskdash login alice
  echo "$PW" | taskdash login alice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd.InOrStdin(), password)
			if err != nil {
				return err
			}
			return opts.withSession(cmd, func(ctx context.Context, s *app.Session) error {
				u, err := s.Manager.Login(ctx, args[0], pw)
				if err != nil {
					return userFacing(err)
				}
				success(cmd.OutOrStdout(), "Signed in as %s (%s)", displayName(u), u.Role)
				if s.Manager.IsAdmin() {
					info(cmd.OutOrStdout(), "Admin views are available.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prefer stdin or $TASKDASH_PASSWORD)")
	return cmd
}

func logoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(ctx context.Context, s *app.Session) error {
				was := s.Manager.IsAuthenticated()
				s.Manager.Logout(ctx)
				if was {
					success(cmd.OutOrStdout(), "Session cleared")
				}
				return nil
			})
		},
	}
}

func registerCmd(opts *globalOptions) *cobra.Command {
	var in session.RegisterInput

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account (does not sign in)",
		Long: `Create a dashboard account. Registration does not start a session;
run "taskdash login" afterwards.

Examples:
  taskdash register --username bob --email bob@example.com < pw.txt
  taskdash register --username ann --email ann@example.com --role admin -p s3cret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := readPassword(cmd.InOrStdin(), in.Password)
			if err != nil {
				return err
			}
			in.Password = pw

			return opts.withSession(cmd, func(ctx context.Context, s *app.Session) error {
				u, err := s.Manager.Register(ctx, in)
				if err != nil {
					return userFacing(err)
				}
				success(cmd.OutOrStdout(), "Created %s (%s)", displayName(u), u.Role)
				info(cmd.OutOrStdout(), "Run \"taskdash login %s\" to sign in.", u.Username)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Username, "username", "", "Username (required)")
	f.StringVar(&in.Email, "email", "", "Email (required)")
	f.StringVarP(&in.Password, "password", "p", "", "Password (prefer stdin or $TASKDASH_PASSWORD)")
	f.StringVar(&in.Name, "name", "", "Display name")
	f.StringVar(&in.Role, "role", string(identity.RoleTeamMember), "Role: admin or team_member")
	f.StringVar(&in.Department, "department", "", "Department")
	return cmd
}

func whoamiCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(_ context.Context, s *app.Session) error {
				snap := s.Manager.Snapshot()
				out := cmd.OutOrStdout()

				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(snap); err != nil {
						return err
					}
				}
				if !snap.Authenticated || snap.User == nil {
					return errNotSignedIn
				}
				if asJSON {
					return nil
				}

				u := *snap.User
				fmt.Fprintf(out, "  User:       %s\n", displayName(u))
				fmt.Fprintf(out, "  ID:         %s\n", u.ID)
				fmt.Fprintf(out, "  Role:       %s\n", u.Role)
				if u.Email != "" {
					fmt.Fprintf(out, "  Email:      %s\n", u.Email)
				}
				if u.Department != "" {
					fmt.Fprintf(out, "  Department: %s\n", u.Department)
				}
				fmt.Fprintf(out, "  Admin:      %t\n", snap.Admin)
				fmt.Fprintf(out, "  Token:      %s…\n", snap.TokenFingerprint)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session snapshot as JSON")
	return cmd
}

func profileCmd(opts *globalOptions) *cobra.Command {
	var name, email, department string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update your name, email or department",
		Long: `Update profile fields. Only flags that are given are sent.

Examples:
  taskdash profile --email alice@example.com
  taskdash profile --name "Alice Smith" --department Platform`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			upd := profileUpdateFromFlags(cmd, name, email, department)
			return opts.withSession(cmd, func(ctx context.Context, s *app.Session) error {
				u, err := s.Manager.UpdateProfile(ctx, upd)
				if errors.Is(err, session.ErrNotAuthenticated) {
					return errNotSignedIn
				}
				if err != nil {
					return userFacing(err)
				}
				success(cmd.OutOrStdout(), "Profile updated for %s", displayName(u))
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&name, "name", "", "Display name")
	f.StringVar(&email, "email", "", "Email")
	f.StringVar(&department, "department", "", "Department")
	return cmd
}

// profileUpdateFromFlags sets only the fields whose flags were given, so
// "--department ''" clears a value while an absent flag leaves it alone.
func profileUpdateFromFlags(cmd *cobra.Command, name, email, department string) session.ProfileUpdate {
	var upd session.ProfileUpdate
	f := cmd.Flags()
	if f.Changed("name") {
		upd.Name = &name
	}
	if f.Changed("email") {
		upd.Email = &email
	}
	if f.Changed("department") {
		upd.Department = &department
	}
	return upd
}

func readPassword(in io.Reader, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("TASKDASH_PASSWORD"); v != "" {
		return v, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("password is required (use --password, $TASKDASH_PASSWORD or stdin)")
	}
	return pw, nil
}

// userFacing keeps the server's message for auth failures and drops the
// wrapping detail meant for logs.
func userFacing(err error) error {
	var ae *session.AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return errors.New(ae.Message)
	}
	var oe identity.OpError
	if errors.As(err, &oe) {
		return oe
	}
	return err
}

func displayName(u identity.User) string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.ID
	}
}

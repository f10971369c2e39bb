package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"gamevault/internal/auth"
	"gamevault/internal/library"
)

var authCmd = &cobra.Command{
	Use:     "auth",
	Short:   "Sign in and out of your gamevault account",
	GroupID: "account",
}

var loginCmd = &cobra.Command{
	Use:   "login <username-or-email>",
	Short: "Sign in and upload the games stored on this device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		p, err := app.api.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		return signIn(cmd, p)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Choose a password: ")
		if err != nil {
			return err
		}
		if len(password) < 8 {
			return errors.New("password must be at least 8 characters")
		}
		p, err := app.api.Register(cmd.Context(), args[0], args[1], password)
		if err != nil {
			return err
		}
		return signIn(cmd, p)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out; games stored on this device are kept",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := app.session.Current()
		if !ok {
			fmt.Println("Not logged in.")
			return nil
		}
		if err := app.api.Logout(cmd.Context(), p); err != nil {
			app.log.Warn("server logout failed", zap.Error(err))
		}
		if err := app.session.Logout(); err != nil {
			return err
		}
		fmt.Printf("Logged out %s.\n", p.Username)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, ok := app.session.Current()
		if jsonOutput {
			if !ok {
				return printJSON(nil)
			}
			p.Token = ""
			return printJSON(p)
		}
		if !ok {
			fmt.Println("Not logged in; your library is stored on this device.")
			return nil
		}
		fmt.Printf("%s <%s>\n", p.Username, p.Email)
		if !p.ExpiresAt.IsZero() {
			fmt.Printf("Session expires %s\n", p.ExpiresAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func signIn(cmd *cobra.Command, p auth.Principal) error {
	if err := app.session.Login(p); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s.\n", p.Username)

	select {
	case res := <-app.reports:
		printReport(res.report)
		if res.err != nil {
			fmt.Fprintln(os.Stderr, "Some games could not be uploaded; run `gamevault sync` to retry.")
		}
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
	return nil
}

func printReport(r library.SyncReport) {
	switch {
	case r.Skipped:
		fmt.Println("Nothing to upload.")
	case len(r.Failed) > 0:
		fmt.Printf("Uploaded %d games, %d failed: %v\n", r.Uploaded, len(r.Failed), r.Failed)
	default:
		fmt.Printf("Uploaded %d games to your account.\n", r.Uploaded)
	}
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(registerCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(whoamiCmd)
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in to the sync backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogin,
	}

	cmd.Flags().String("password", "", "password (prompted if not given)")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the saved session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE:  runSignup,
	}

	cmd.Flags().String("password", "", "password (prompted if not given)")

	return cmd
}

func newResetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE:  runResetPassword,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the signed-in user",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := args[0]

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	ids, sessions, err := openIdentity()
	if err != nil {
		return err
	}
	defer sessions.Close()

	uid, err := ids.Login(context.Background(), email, password)
	if err != nil {
		return err
	}

	statusf("Signed in as %s (%s).\n", email, uid)

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	ids, sessions, err := openIdentity()
	if err != nil {
		return err
	}
	defer sessions.Close()

	if _, ok := ids.Current(); !ok {
		statusf("Not signed in.\n")
		return nil
	}

	if err := ids.Logout(); err != nil {
		return err
	}

	statusf("Signed out.\n")

	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	email := args[0]

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	ids, sessions, err := openIdentity()
	if err != nil {
		return err
	}
	defer sessions.Close()

	if err := ids.SignUp(context.Background(), email, password); err != nil {
		return err
	}

	statusf("Account created. Sign in with: priceloom login %s\n", email)

	return nil
}

func runResetPassword(_ *cobra.Command, args []string) error {
	ids, sessions, err := openIdentity()
	if err != nil {
		return err
	}
	defer sessions.Close()

	if err := ids.ResetPassword(context.Background(), args[0]); err != nil {
		return err
	}

	statusf("Password reset email sent to %s.\n", args[0])

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	UID    string `json:"uid,omitempty"`
	Email  string `json:"email,omitempty"`
	Signed bool   `json:"signed_in"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
	ids, sessions, err := openIdentity()
	if err != nil {
		return err
	}
	defer sessions.Close()

	uid, ok := ids.Current()

	if flagJSON {
		out := whoamiOutput{UID: uid, Email: ids.Email(), Signed: ok}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	if !ok {
		fmt.Println("Not signed in.")
		return nil
	}

	fmt.Printf("%s (%s)\n", ids.Email(), uid)

	return nil
}

// readPassword takes the password from --password or prompts on stderr
// and reads one line from stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	reader := bufio.NewReader(os.Stdin)

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	password = strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password")
	}

	return password, nil
}

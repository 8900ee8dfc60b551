package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sagarc03/warden/config"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage registered users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register a user",
	Long: `Register a user directly in the configured store.

The password is read from the terminal without echo. When stdin is not
a terminal the first line of stdin is used, so passwords can be piped:

  echo 's3cret!Pass' | warden user add alice`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

var userShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a user and the state of its privilege key",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserShow,
}

func init() {
	userCmd.AddCommand(userAddCmd, userListCmd, userShowCmd)
	rootCmd.AddCommand(userCmd)
}

// readPassword is replaced in tests.
var readPassword = term.ReadPassword

func promptPassword(stdin *os.File, w io.Writer) (string, error) {
	fd := int(stdin.Fd()) //#nosec G115 -- file descriptors fit in int
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(w, "Password: ")
		pw, err := readPassword(fd)
		_, _ = fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	return readLine(stdin)
}

// readLine returns the first line of r without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("read password: no password given on stdin")
	}
	return line, nil
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	password, err := promptPassword(os.Stdin, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	svc, err := newServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.auth.Register(cmd.Context(), args[0], password); err != nil {
		return fmt.Errorf("add user %s: %w", args[0], err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added: %s\n", args[0])
	return nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	svc, err := newServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	users, err := svc.repo.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	w := cmd.OutOrStdout()
	if len(users) == 0 {
		_, _ = fmt.Fprintln(w, "No users found")
		return nil
	}

	now := time.Now()
	_, _ = fmt.Fprintf(w, "%-12s  %-9s  %s\n", "ID", "KEY", "CREATED")
	_, _ = fmt.Fprintf(w, "%s  %s  %s\n", strings.Repeat("-", 12), strings.Repeat("-", 9), strings.Repeat("-", 19))
	for i := range users {
		u := &users[i]
		_, _ = fmt.Fprintf(w, "%-12s  %-9s  %s\n", u.ID, u.Key.State(now), formatTime(u.CreatedAt))
	}
	_, _ = fmt.Fprintf(w, "\n%d user(s)\n", len(users))

	return nil
}

func runUserShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	svc, err := newServices(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	u, err := svc.repo.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("show user %s: %w", args[0], err)
	}

	key, state, err := svc.privilege.Key(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("show user %s: %w", args[0], err)
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "ID:       %s\n", u.ID)
	_, _ = fmt.Fprintf(w, "Created:  %s\n", formatTime(u.CreatedAt))
	_, _ = fmt.Fprintf(w, "Key:      %s\n", state)
	if expiry := key.Expiry(); !expiry.IsZero() {
		_, _ = fmt.Fprintf(w, "Expires:  %s\n", formatTime(expiry))
	}

	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

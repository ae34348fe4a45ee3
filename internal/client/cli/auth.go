package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mpavlenko/docketsync/internal/client/storage"
)

func (a *App) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := a.readPassword()
			if err != nil {
				return err
			}
			if err := a.api.Register(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "registered %s, now log in\n", args[0])
			return nil
		},
	}
}

func (a *App) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and start a session on this device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			username := args[0]

			password, err := a.readPassword()
			if err != nil {
				return err
			}
			token, err := a.api.Login(ctx, username, password)
			if err != nil {
				return err
			}

			// A different account on the same device: wipe the previous
			// user's local data before the new session starts.
			prev, _ := a.db.Meta().Get(ctx, storage.MetaUsername)
			if prev != "" && prev != username {
				fmt.Fprintf(a.out, "switching accounts, clearing local data of %s\n", prev)
				if err := a.db.Wipe(ctx); err != nil {
					return err
				}
			}

			if err := a.db.Meta().Set(ctx, storage.MetaUsername, username); err != nil {
				return err
			}
			if err := a.db.Meta().Set(ctx, storage.MetaAccessToken, token); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "logged in as %s\n", username)
			return nil
		},
	}
}

// readPassword prompts without echo on a terminal and falls back to reading
// a line for piped input.
func (a *App) readPassword() (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

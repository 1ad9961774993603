package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/samsaffron/webchat/internal/config"
	"github.com/samsaffron/webchat/internal/session"
	"github.com/samsaffron/webchat/internal/ui"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
	RunE:  runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [n|id]",
	Short: "Print a session transcript (defaults to the active session)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionsShow,
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <n|id> <title>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionsRename,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <n|id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsEditCmd = &cobra.Command{
	Use:   "edit <n|id> <message-index> <content>",
	Short: "Rewrite one message in place (the rest of the transcript is kept)",
	Args:  cobra.ExactArgs(3),
	RunE:  runSessionsEdit,
}

var sessionExportFormat string

var sessionsExportCmd = &cobra.Command{
	Use:   "export [n|id]",
	Short: "Export one session as markdown, yaml, or json",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionsExport,
}

func init() {
	sessionsExportCmd.Flags().StringVarP(&sessionExportFormat, "format", "f", "markdown", "output format: markdown, yaml, or json")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsRenameCmd, sessionsDeleteCmd, sessionsEditCmd, sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func withStore(fn func(store *session.Store, kv *session.SQLiteKV) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	kv, store, _, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	return fn(store, kv)
}

// resolveSession accepts a 1-based list position or a session id.
func resolveSession(store *session.Store, arg string) (*session.Session, error) {
	sessions := store.Sessions()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(sessions) {
		return sessions[n-1], nil
	}
	if sess := store.Get(arg); sess != nil {
		return sess, nil
	}
	return nil, fmt.Errorf("no such session: %s", arg)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	return withStore(func(store *session.Store, _ *session.SQLiteKV) error {
		activeID := store.ActiveID()
		for i, sess := range store.Sessions() {
			mark := "  "
			if sess.ID == activeID {
				mark = ui.ActiveMarkStyle.Render("* ")
			}
			created := time.UnixMilli(sess.CreatedAt).Format("2006-01-02 15:04")
			fmt.Printf("%s%2d. %-40s %s %s\n", mark, i+1, sess.Title,
				ui.DimStyle.Render(created),
				ui.DimStyle.Render(fmt.Sprintf("%d messages", len(sess.Messages))))
		}
		return nil
	})
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	return withStore(func(store *session.Store, _ *session.SQLiteKV) error {
		sess := store.Active()
		if len(args) == 1 {
			var err error
			if sess, err = resolveSession(store, args[0]); err != nil {
				return err
			}
		}
		fmt.Println(ui.TitleStyle.Render(sess.Title))
		for _, msg := range sess.Messages {
			fmt.Printf("\n%s\n%s\n", ui.RoleStyle.Render(string(msg.Role)), msg.Content)
		}
		return nil
	})
}

func runSessionsRename(cmd *cobra.Command, args []string) error {
	return withStore(func(store *session.Store, _ *session.SQLiteKV) error {
		sess, err := resolveSession(store, args[0])
		if err != nil {
			return err
		}
		store.Rename(sess.ID, args[1])
		return nil
	})
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	return withStore(func(store *session.Store, _ *session.SQLiteKV) error {
		sess, err := resolveSession(store, args[0])
		if err != nil {
			return err
		}
		store.Delete(sess.ID)
		return nil
	})
}

func runSessionsEdit(cmd *cobra.Command, args []string) error {
	return withStore(func(store *session.Store, _ *session.SQLiteKV) error {
		sess, err := resolveSession(store, args[0])
		if err != nil {
			return err
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("message index must be a number: %q", args[1])
		}
		return store.EditMessage(sess.ID, index, args[2])
	})
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	return withStore(func(store *session.Store, _ *session.SQLiteKV) error {
		sess := store.Active()
		if len(args) == 1 {
			var err error
			if sess, err = resolveSession(store, args[0]); err != nil {
				return err
			}
		}
		switch sessionExportFormat {
		case "markdown", "md":
			fmt.Print(session.ExportToMarkdown(sess))
		case "yaml", "yml":
			out, err := session.ExportToYAML(sess)
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
		case "json":
			out, err := json.MarshalIndent(sess, "", "  ")
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
			fmt.Println()
		default:
			return fmt.Errorf("unknown format %q (want markdown, yaml, or json)", sessionExportFormat)
		}
		return nil
	})
}

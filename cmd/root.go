// Package cmd wires the webchat commands: the interactive chat REPL,
// session management, snapshot export/import, and the API relay server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samsaffron/webchat/internal/config"
	"github.com/samsaffron/webchat/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "webchat",
	Short: "Chat with OpenAI models from the terminal",
	Long: `webchat is a streaming chat client for OpenAI models with persistent
conversation sessions. Run it with no arguments for an interactive chat,
or use the subcommands to manage sessions and run the API relay.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

var dbPathFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "path to the session database (default: XDG data dir)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the session database and loads persisted settings, using
// the config file values as defaults for anything not yet saved.
func openStore(cfg *config.Config) (*session.SQLiteKV, *session.Store, session.Settings, error) {
	path := dbPathFlag
	if path == "" {
		path = cfg.DBPath
	}
	if path == "" {
		var err error
		path, err = session.DefaultDBPath()
		if err != nil {
			return nil, nil, session.Settings{}, err
		}
	}
	kv, err := session.OpenSQLiteKV(path)
	if err != nil {
		return nil, nil, session.Settings{}, fmt.Errorf("open session database: %w", err)
	}
	store := session.Open(kv)
	settings := session.LoadSettings(kv, session.Settings{
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		APIKey:       cfg.APIKey,
		Temperature:  cfg.Temperature,
		TopP:         cfg.TopP,
	})
	return kv, store, settings, nil
}

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/samsaffron/webchat/internal/config"
	"github.com/samsaffron/webchat/internal/session"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all sessions and settings as a JSON snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a JSON snapshot (replaces existing sessions)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	kv, store, settings, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	data, err := store.Export(settings.Model, settings.SystemPrompt)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if err := os.WriteFile(args[0], data, 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		fmt.Fprintf(os.Stderr, "exported %d sessions to %s\n", len(store.Sessions()), args[0])
		return nil
	}
	os.Stdout.Write(data)
	fmt.Println()
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	kv, store, settings, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	snap, err := store.Import(data)
	if err != nil {
		return err
	}
	if snap.Model != "" {
		settings.Model = snap.Model
	}
	if snap.SystemPrompt != "" {
		settings.SystemPrompt = snap.SystemPrompt
	}
	session.SaveSettings(kv, settings)

	fmt.Fprintf(os.Stderr, "imported %d sessions\n", len(store.Sessions()))
	return nil
}

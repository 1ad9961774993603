package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/samsaffron/webchat/internal/config"
	"github.com/samsaffron/webchat/internal/llm"
	"github.com/samsaffron/webchat/internal/session"
	"github.com/samsaffron/webchat/internal/turn"
	"github.com/samsaffron/webchat/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat interactively, or send a single message",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	kv, store, settings, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	if settings.APIKey == "" && cfg.ProxyURL == "" {
		return fmt.Errorf("no API key configured: set OPENAI_API_KEY, add api_key to the config file, or point proxy_url at a running relay")
	}

	client := llm.NewClient(settings.APIKey, cfg.ProxyURL)
	sink := ui.NewChatSink(os.Stdout)
	ctl := turn.NewController(store, client, sink, func() session.Settings { return settings })

	// Ctrl-C stops the in-flight reply instead of killing the process.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			ctl.Stop()
		}
	}()

	if len(args) > 0 {
		_, err := ctl.Submit(cmd.Context(), strings.Join(args, " "))
		return err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// Piped input: treat all of stdin as one message.
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		_, err = ctl.Submit(cmd.Context(), string(data))
		return err
	}

	return chatLoop(cmd.Context(), store, kv, ctl, &settings)
}

func chatLoop(ctx context.Context, store *session.Store, kv session.KV, ctl *turn.Controller, settings *session.Settings) error {
	fmt.Println(ui.TitleStyle.Render("webchat") + ui.DimStyle.Render("  /help for commands, /quit to exit"))
	printSessionBanner(store)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print(ui.PromptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runSlashCommand(line, store, kv, ctl, settings); quit {
				return nil
			}
			continue
		}
		if _, err := ctl.Submit(ctx, line); err != nil {
			fmt.Println(ui.ErrorStyle.Render(err.Error()))
		}
	}
}

// runSlashCommand handles the REPL's /commands; it returns true when the
// loop should exit.
func runSlashCommand(line string, store *session.Store, kv session.KV, ctl *turn.Controller, settings *session.Settings) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		fmt.Print(`/new              start a new session
/sessions         list sessions
/switch <n|id>    switch to a session by number or id
/rename <title>   rename the active session
/retry            re-send the conversation
/model [name]     show or set the model
/system [prompt]  show or set the system prompt
/quit             exit
`)
	case "/new":
		sess := store.Create()
		fmt.Println(ui.DimStyle.Render("started session " + sess.ID))
	case "/sessions":
		printSessions(store)
	case "/switch":
		switchSession(store, rest)
	case "/rename":
		if rest == "" {
			fmt.Println(ui.ErrorStyle.Render("usage: /rename <title>"))
			break
		}
		store.Rename(store.ActiveID(), rest)
		fmt.Println(ui.DimStyle.Render("renamed"))
	case "/retry":
		if _, err := ctl.Retry(context.Background()); err != nil {
			fmt.Println(ui.ErrorStyle.Render(err.Error()))
		}
	case "/model":
		if rest == "" {
			fmt.Println(settings.Model)
			break
		}
		settings.Model = rest
		session.SaveSettings(kv, *settings)
		fmt.Println(ui.DimStyle.Render("model set to " + rest))
	case "/system":
		if rest == "" {
			fmt.Println(settings.SystemPrompt)
			break
		}
		settings.SystemPrompt = rest
		session.SaveSettings(kv, *settings)
		fmt.Println(ui.DimStyle.Render("system prompt updated"))
	default:
		fmt.Println(ui.ErrorStyle.Render("unknown command " + cmd + " (try /help)"))
	}
	return false
}

func printSessionBanner(store *session.Store) {
	sess := store.Active()
	fmt.Printf("%s %s\n", ui.DimStyle.Render("session:"), sess.Title)
}

func printSessions(store *session.Store) {
	activeID := store.ActiveID()
	for i, sess := range store.Sessions() {
		mark := "  "
		if sess.ID == activeID {
			mark = ui.ActiveMarkStyle.Render("* ")
		}
		fmt.Printf("%s%2d. %s %s\n", mark, i+1, sess.Title, ui.DimStyle.Render(sess.ID))
	}
}

func switchSession(store *session.Store, arg string) {
	if arg == "" {
		fmt.Println(ui.ErrorStyle.Render("usage: /switch <n|id>"))
		return
	}
	sessions := store.Sessions()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(sessions) {
		store.Select(sessions[n-1].ID)
		printSessionBanner(store)
		return
	}
	if store.Get(arg) == nil {
		fmt.Println(ui.ErrorStyle.Render("no such session: " + arg))
		return
	}
	store.Select(arg)
	printSessionBanner(store)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cloudzz-dev/speakly/internal/client/api"
	"github.com/cloudzz-dev/speakly/internal/client/config"
	"github.com/cloudzz-dev/speakly/internal/client/debug"
	"github.com/cloudzz-dev/speakly/internal/client/music"
	"github.com/cloudzz-dev/speakly/internal/client/recorder"
	"github.com/cloudzz-dev/speakly/internal/client/session"
	"github.com/cloudzz-dev/speakly/internal/client/ui"
)

var rootCmd = &cobra.Command{
	Use:           "speakly",
	Short:         "Speakly terminal messenger",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), cmd.Flags())
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringP("profile", "p", "", "session profile, lets several accounts run side by side")
	rootCmd.PersistentFlags().StringP("server", "s", "", "server base URL, e.g. http://localhost:8080")
	rootCmd.PersistentFlags().Bool("debug", false, "write a debug log")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, flags *pflag.FlagSet) error {
	cfg, err := config.Load(config.Dir(), flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Debug {
		if err := debug.Enable(cfg.DebugLog); err != nil {
			return fmt.Errorf("enable debug log: %w", err)
		}
		defer debug.Sync()
		debug.Log("starting, server=%s profile=%s", cfg.ServerURL, cfg.Profile)
	}

	client := api.New(cfg.ServerURL, nil)
	store := session.NewStore(session.GetConfigDir(cfg.Profile), cfg.ServerURL)
	user, err := store.Load()
	if err != nil {
		debug.Log("session: %v", err)
	}
	if user != nil {
		client.SetUser(user.ID)
	}

	return ui.Run(ctx, ui.Options{
		Backend:      client,
		Sessions:     store,
		Recorder:     recorder.New(cfg.RecorderCommand),
		Catalog:      music.NewCatalog(cfg.MusicURL, nil),
		Player:       music.NewPlayer(cfg.PlayerCommand),
		ServerURL:    cfg.ServerURL,
		Profile:      cfg.Profile,
		PollInterval: cfg.PollInterval,
		ReturnURL:    cfg.ReturnURL,
		Events:       cfg.Events,
		OpenURL:      openBrowser,
	})
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// Command awgctl edits the tunnel configuration held by an amneziawg-webui
// backend from the shell.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"amneziawg-webui/internal/config"
	"amneziawg-webui/internal/editor"
	"amneziawg-webui/internal/form"
	"amneziawg-webui/internal/gateway"
	"amneziawg-webui/internal/keys"
	"amneziawg-webui/internal/logs"
	"amneziawg-webui/internal/version"
)

var (
	v          = config.New()
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "awgctl",
	Short:         "Edit the AmneziaWG tunnel configuration stored by amneziawg-webui",
	Version:       version.Current().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default: ./config.yaml or /etc/amneziawg-webui/config.yaml)")
	flags.String("url", "http://127.0.0.1:8091", "backend base URL")
	flags.String("token", "", "backend API token")
	flags.Duration("timeout", 15*time.Second, "request timeout")
	flags.String("log-level", "warn", "log level (trace|debug|info|warn|error)")
	flags.Bool("allow-insecure-fallback", false, "allow a non-cryptographic random source when generating keys")
	_ = v.BindPFlag("client.url", flags.Lookup("url"))
	_ = v.BindPFlag("client.token", flags.Lookup("token"))
	_ = v.BindPFlag("client.timeout", flags.Lookup("timeout"))
	_ = v.BindPFlag("logs.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("keys.allow_insecure_fallback", flags.Lookup("allow-insecure-fallback"))

	registerCommands(rootCmd)
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient() *gateway.Client {
	return gateway.NewClient(cfg.Client.URL, cfg.Client.Token, &http.Client{Timeout: cfg.Client.Timeout})
}

// session is one editor loaded from the backend. Rows start as a mirror of
// the stored peers and policy so that unrelated saves leave them intact.
type session struct {
	editor *editor.Editor
	rows   *form.Memory
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	rows := form.NewMemory()
	notifier := editor.NotifierFunc(func(message string) { cmd.Println(message) })
	ed := editor.New(newClient(), rows, notifier, keys.Options{AllowInsecureFallback: cfg.Keys.AllowInsecureFallback})
	found, err := ed.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		cmd.PrintErrln("backend holds no configuration yet; starting from defaults")
	}
	stored := form.FromConfig(ed.Store().Snapshot())
	for _, table := range form.Tables {
		rows.Replace(table, stored.Rows(table))
	}
	return &session{editor: ed, rows: rows}, nil
}

// useRows replaces the tables present in file; absent tables keep their rows.
func (s *session) useRows(file *form.Memory) {
	for _, table := range form.Tables {
		if file.Has(table) {
			s.rows.Replace(table, file.Rows(table))
		}
	}
}

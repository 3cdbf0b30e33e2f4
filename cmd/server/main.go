package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/litka-chat/litka/pkg/accounts"
	"github.com/litka-chat/litka/pkg/logging"
	"github.com/litka-chat/litka/pkg/profiles"
	"github.com/litka-chat/litka/pkg/rbac"
	"github.com/litka-chat/litka/pkg/server"
	"github.com/litka-chat/litka/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "HTTP/WebSocket bind address (overrides config)")
	storeURL := flag.String("store", "", "Store: memory, file:<dir> or sqlite:<path> (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	exportUsers := flag.Bool("export-users", false, "Export all users as YAML and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *storeURL != "" {
		cfg.Store = *storeURL
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	cfg.ExportUsers = *exportUsers

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(logging.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    os.Stdout,
		Component: "server",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	st, err := server.OpenStore(cfg.Store)
	if err != nil {
		slog.Error("open store", "store", cfg.Store, "err", err)
		os.Exit(1)
	}

	// Handle export command (run and exit)
	if cfg.ExportUsers {
		defer st.Close()
		accts, err := accounts.New(accounts.Options{KV: st})
		if err != nil {
			slog.Error("load accounts", "err", err)
			os.Exit(1)
		}
		profs, err := profiles.New(profiles.Options{KV: st})
		if err != nil {
			slog.Error("load profiles", "err", err)
			os.Exit(1)
		}
		data, err := server.ExportUsersYAML(accts, profs, rbac.NewRoster(cfg.PrivilegedUsers))
		if err != nil {
			slog.Error("export users", "err", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	slog.Info("starting Litka", "version", version.String())
	srv, err := server.New(cfg, server.Dependencies{Store: st})
	if err != nil {
		_ = st.Close()
		slog.Error("server init", "err", err)
		os.Exit(1)
	}
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

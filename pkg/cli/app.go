package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mchmarny/sohma/pkg/config"
	"github.com/mchmarny/sohma/pkg/logging"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "sohma"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"

	debugFlagName  = "debug"
	configFlagName = "config"
	formatFlagName = "format"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(false)

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	*config.Config
	Format string
}

func getConfig(cmd *urfave.Command) *appConfig {
	if cfg, ok := cmd.Root().Metadata[appConfigKey].(*appConfig); ok {
		return cfg
	}
	return &appConfig{Config: config.Default(), Format: formatJSON}
}

// newApp builds a fresh command tree; urfave keeps parse state on flags and
// commands, so they are not shared between runs.
func newApp() *urfave.Command {
	return &urfave.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Behavioral scoring service for puzzle-session telemetry",
		Metadata:              map[string]any{},
		Flags: []urfave.Flag{
			&urfave.BoolFlag{
				Name:  debugFlagName,
				Usage: "Prints verbose logs (optional, default: false)",
			},
			&urfave.StringFlag{
				Name:  configFlagName,
				Usage: fmt.Sprintf("Path to the YAML config file (optional, falls back to $%s)", config.PathEnvVar),
			},
			&urfave.StringFlag{
				Name:  formatFlagName,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*urfave.Command{
			newServerCmd(),
			newScoreCmd(),
			newHealthCmd(),
			newConfigCmd(),
		},
		Before: func(ctx context.Context, cmd *urfave.Command) (context.Context, error) {
			cfg, err := config.Load(cmd.String(configFlagName))
			if err != nil {
				return ctx, fmt.Errorf("loading config: %w", err)
			}

			if cmd.Bool(debugFlagName) {
				cfg.Log.Level = "debug"
			}
			logging.SetDefault(cfg.Log.Format, cfg.Log.Level)

			format := formatJSON
			if f := cmd.String(formatFlagName); f == formatYAML || f == "yml" {
				format = formatYAML
			}

			cmd.Metadata[appConfigKey] = &appConfig{
				Config: cfg,
				Format: format,
			}
			return ctx, nil
		},
	}
}

// initLogging installs the CLI logger used until the config is loaded.
func initLogging(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)
}

func writer(cmd *urfave.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func encode(w io.Writer, format string, v any) error {
	if format == formatYAML {
		return encodeYAML(w, v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

// encodeYAML goes through JSON so field names and number literals match the
// HTTP output, then re-emits the document in block style.
func encodeYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding %T: %w", v, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("error converting %T to yaml: %w", v, err)
	}
	blockStyle(&doc)

	e := yaml.NewEncoder(w)
	e.SetIndent(2)
	if err := e.Encode(&doc); err != nil {
		return fmt.Errorf("error encoding yaml: %w", err)
	}
	return e.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

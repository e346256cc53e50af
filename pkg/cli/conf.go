package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mchmarny/sohma/pkg/config"
	urfave "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const outFlagName = "out"

func newConfigCmd() *urfave.Command {
	return &urfave.Command{
		Name:  "config",
		Usage: "Inspect or create configuration",
		Commands: []*urfave.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration",
				Action: cmdConfigShow,
			},
			{
				Name:   "init",
				Usage:  "Write the default configuration to a file",
				Action: cmdConfigInit,
				Flags: []urfave.Flag{
					&urfave.StringFlag{
						Name:     outFlagName,
						Aliases:  []string{"o"},
						Usage:    "Path of the config file to write",
						Required: true,
					},
				},
			},
		},
	}
}

func cmdConfigShow(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	e := yaml.NewEncoder(writer(cmd))
	e.SetIndent(2)
	if err := e.Encode(cfg.Config); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return e.Close()
}

func cmdConfigInit(_ context.Context, cmd *urfave.Command) error {
	path := cmd.String(outFlagName)
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	slog.Info("config written", "path", path)
	return nil
}

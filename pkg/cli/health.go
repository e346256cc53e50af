package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/sohma/pkg/net"
	urfave "github.com/urfave/cli/v3"
)

var errNotHealthy = errors.New("server reported not ok")

func newHealthCmd() *urfave.Command {
	return &urfave.Command{
		Name:   "health",
		Usage:  "Check a running server",
		Action: cmdHealth,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:  urlFlagName,
				Usage: "Base URL of the server to check",
				Value: "http://127.0.0.1:8080",
			},
		},
	}
}

type healthStatus struct {
	OK bool `json:"ok"`
}

func cmdHealth(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	base := cmd.String(urlFlagName)

	var status healthStatus
	if err := net.GetJSON(ctx, endpoint(base, "/healthz"), &status); err != nil {
		return fmt.Errorf("error checking %s: %w", base, err)
	}

	if err := encode(writer(cmd), cfg.Format, &status); err != nil {
		return err
	}
	if !status.OK {
		return errNotHealthy
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mchmarny/sohma/pkg/net"
	"github.com/mchmarny/sohma/pkg/score"
	urfave "github.com/urfave/cli/v3"
)

const (
	stdinPath = "-"

	fileFlagName = "file"
	urlFlagName  = "url"
)

func newScoreCmd() *urfave.Command {
	return &urfave.Command{
		Name:    "score",
		Aliases: []string{"predict"},
		Usage:   "Score a telemetry payload",
		UsageText: `sohma score --file session.json                               # score locally
   cat session.json | sohma --format yaml score                  # read from stdin
   sohma score --file session.json --url http://127.0.0.1:8080   # score on a running server`,
		Action: cmdScore,
		Flags: []urfave.Flag{
			&urfave.StringFlag{
				Name:    fileFlagName,
				Aliases: []string{"f"},
				Usage:   "Path to the JSON payload, - for stdin",
				Value:   stdinPath,
			},
			&urfave.StringFlag{
				Name:  urlFlagName,
				Usage: "Base URL of a running server (optional, scores locally when empty)",
			},
		},
	}
}

func cmdScore(ctx context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)

	in, err := openPayload(cmd.String(fileFlagName))
	if err != nil {
		return err
	}
	defer in.Close()

	if base := cmd.String(urlFlagName); base != "" {
		var res score.Result
		if err := net.PostJSON(ctx, endpoint(base, "/predict"), in, &res); err != nil {
			return fmt.Errorf("error scoring on %s: %w", base, err)
		}
		return encode(writer(cmd), cfg.Format, &res)
	}

	payload, err := score.DecodePayload(in)
	if err != nil {
		return fmt.Errorf("error reading payload: %w", err)
	}

	res, err := score.NewScorer().Score(payload)
	if err != nil {
		return fmt.Errorf("error scoring payload: %w", err)
	}
	return encode(writer(cmd), cfg.Format, res)
}

func openPayload(path string) (io.ReadCloser, error) {
	if path == "" || path == stdinPath {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening payload file %s: %w", path, err)
	}
	return f, nil
}

func endpoint(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

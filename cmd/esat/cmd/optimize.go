package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tensorgraph/esat/esat"
	"github.com/tensorgraph/esat/internal/config"
	"github.com/tensorgraph/esat/internal/cost"
	"github.com/tensorgraph/esat/internal/pattern"
)

func newOptimizeCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize <program.json>",
		Short: "run saturation, extraction, and reconstruction over a program",
		Args:  cobra.ExactArgs(1),
		RunE:  mkRunE(c, runOptimize),
	}
	cmd.Flags().String("rules", "", "path to an additional rule file")
	cmd.Flags().StringP("out", "o", "-", "output path, or - for stdout")
	cmd.Flags().String("cost-cmd", "", "subprocess binary used to price e-nodes")
	cmd.Flags().StringArray("cost-arg", nil, "argument to pass the cost subprocess (repeatable)")
	cmd.Flags().String("cost-wasm", "", "WASM guest module used to price e-nodes")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runOptimize(c *Command, args []string) error {
	verbose, _ := c.Flags().GetBool("verbose")
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	runTag := newRunTag()
	logger.Info("optimize: start", "run", runTag, "program", args[0])

	p, err := readProgram(args[0])
	if err != nil {
		return err
	}

	b := esat.NewBuilder()
	root, err := buildGraph(b, p)
	if err != nil {
		return err
	}
	b.SetRoot(root)

	if rulesPath, _ := c.Flags().GetString("rules"); rulesPath != "" {
		text, err := os.ReadFile(rulesPath)
		if err != nil {
			return err
		}
		extra, err := pattern.ParseRuleText(string(text))
		if err != nil {
			return err
		}
		b.AddRules(extra)
	}

	oracle, err := buildOracle(c)
	if err != nil {
		return err
	}
	if closer, ok := oracle.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	opts, err := loadConfig(c)
	if err != nil {
		return err
	}

	res, err := b.Finalize(c.Context(), opts, oracle)
	if err != nil {
		logger.Error("optimize: failed", "run", runTag, "error", err)
		return err
	}
	logger.Info("optimize: stop", "run", runTag, "reason", res.StopReason.String(), "cost", res.Cost, "nodes", len(res.Records))

	out, _ := c.Flags().GetString("out")
	return writeRecords(out, res.Records)
}

// buildOracle constructs the cost.Oracle backend selected by flags:
// --cost-cmd (plus repeated --cost-arg) for the subprocess backend, or
// --cost-wasm for the WASM guest module backend. Exactly one must be
// given.
func buildOracle(c *Command) (cost.Oracle, error) {
	cmdPath, _ := c.Flags().GetString("cost-cmd")
	cmdArgs, _ := c.Flags().GetStringArray("cost-arg")
	wasmPath, _ := c.Flags().GetString("cost-wasm")

	switch {
	case cmdPath != "" && wasmPath != "":
		return nil, fmt.Errorf("optimize: --cost-cmd and --cost-wasm are mutually exclusive")
	case cmdPath != "":
		return &cost.SubprocessOracle{Command: cmdPath, Args: cmdArgs}, nil
	case wasmPath != "":
		return cost.NewWasmOracle(wasmPath)
	default:
		return nil, fmt.Errorf("optimize: one of --cost-cmd or --cost-wasm is required")
	}
}

// newRunTag returns a short random hex identifier for correlating one
// optimize invocation's start/stop log pair, standing in for a UUID
// since no uuid dependency is wired into this module (see DESIGN.md).
func newRunTag() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

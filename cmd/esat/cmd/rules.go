package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tensorgraph/esat/internal/pattern"
)

func newRulesCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "work with rewrite-rule files",
	}
	cmd.AddCommand(newRulesLintCmd(c))
	return cmd
}

func newRulesLintCmd(c *Command) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <file.rules>",
		Short: "parse a rule file and report malformed rules without running saturation",
		Args:  cobra.ExactArgs(1),
		RunE:  mkRunE(c, runRulesLint),
	}
}

func runRulesLint(c *Command, args []string) error {
	text, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	rules, err := pattern.ParseRuleText(string(text))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "%d rules, no errors\n", len(rules))
	return nil
}

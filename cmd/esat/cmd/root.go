// Package cmd implements the esat command-tree, one New<Verb>Cmd
// constructor per verb wired into a root command, in the shape of
// cmd/cue's own command package.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runFunction is the body of a leaf command, given the parsed Command
// and its positional arguments.
type runFunction func(cmd *Command, args []string) error

func mkRunE(c *Command, f runFunction) func(*cobra.Command, []string) error {
	return func(cc *cobra.Command, args []string) error {
		c.Command = cc
		return f(c, args)
	}
}

// New creates the top-level command.
func New(args []string) (*Command, error) {
	root := &cobra.Command{
		Use:   "esat",
		Short: "esat optimizes tensor computation graphs by equality saturation",

		SilenceErrors: true,
		SilenceUsage:  true,
	}

	c := &Command{Command: root, root: root}

	addGlobalFlags(root.PersistentFlags())

	for _, sub := range []*cobra.Command{
		newOptimizeCmd(c),
		newRulesCmd(c),
		newGraphCmd(c),
		newVersionCmd(c),
	} {
		root.AddCommand(sub)
	}

	root.SetArgs(args)
	return c, nil
}

// Main runs esat and returns the process exit code.
func Main() int {
	c, _ := New(os.Args[1:])
	if err := c.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// Command wraps the cobra.Command currently executing so that leaf
// RunE bodies can reach both it and the root command that owns the
// global flags.
type Command struct {
	*cobra.Command
	root *cobra.Command
}

func (c *Command) Run(ctx context.Context) error {
	return c.root.ExecuteContext(ctx)
}

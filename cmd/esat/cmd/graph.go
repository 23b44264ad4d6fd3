package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tensorgraph/esat/esat"
	"github.com/tensorgraph/esat/internal/config"
	"github.com/tensorgraph/esat/internal/debugviz"
	"github.com/tensorgraph/esat/internal/pattern"
	"github.com/tensorgraph/esat/internal/rewrite"
)

func newGraphCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "inspect a graph",
	}
	cmd.AddCommand(newGraphDumpCmd(c))
	return cmd
}

func newGraphDumpCmd(c *Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <program.json>",
		Short: "render the e-graph built from a program, pre- or post-saturation",
		Args:  cobra.ExactArgs(1),
		RunE:  mkRunE(c, runGraphDump),
	}
	cmd.Flags().String("format", "mermaid", "output format: mermaid|text")
	cmd.Flags().Bool("saturate", false, "run saturation before rendering")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runGraphDump(c *Command, args []string) error {
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

	saturate, _ := c.Flags().GetBool("saturate")
	if saturate {
		opts, err := loadConfig(c)
		if err != nil {
			return err
		}
		driver := &rewrite.Driver{Graph: b.Graph(), Rules: pattern.BuiltinRules(), Limits: opts.RewriteLimits(), CycleMode: opts.CycleMode()}
		if _, err := driver.Run(c.Context()); err != nil {
			return err
		}
	}

	format, _ := c.Flags().GetString("format")
	switch format {
	case "mermaid":
		fmt.Fprint(c.OutOrStdout(), debugviz.Dump(b.Graph()))
	case "text":
		dumpText(c, b)
	default:
		return fmt.Errorf("graph dump: unknown format %q", format)
	}
	return nil
}

func dumpText(c *Command, b *esat.Builder) {
	g := b.Graph()
	classes := g.Classes()
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	for _, cls := range classes {
		fmt.Fprintf(c.OutOrStdout(), "class %d:\n", cls)
		for _, n := range g.Nodes(cls) {
			fmt.Fprintf(c.OutOrStdout(), "  %s\n", n.String())
		}
	}
}

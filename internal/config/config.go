// Package config loads the driver's configuration options from
// defaults, an optional YAML file, and CLI flags, in that order of
// increasing precedence, per spec.md §6.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tensorgraph/esat/internal/cycle"
	"github.com/tensorgraph/esat/internal/ilp"
	"github.com/tensorgraph/esat/internal/multipattern"
	"github.com/tensorgraph/esat/internal/rewrite"
)

// Options is the flat set of configuration keys from spec.md §6.
type Options struct {
	TimeLimitSec     float64 `yaml:"time_limit_sec"`
	NodeLimit        int     `yaml:"node_limit"`
	IterLimit        int     `yaml:"iter_limit"`
	UseMultiPatterns bool    `yaml:"use_multi_patterns"`
	NoCycle          bool    `yaml:"no_cycle"`
	FilterAfter      bool    `yaml:"filter_after"`

	ILPTimeLimit       float64 `yaml:"ilp_time_limit"`
	ILPThreads         int     `yaml:"ilp_threads"`
	ILPNoOrder         bool    `yaml:"ilp_no_order"`
	ILPClassConstraint bool    `yaml:"ilp_class_constraint"`
	ILPOrderVarInt     bool    `yaml:"ilp_order_var_int"`

	ILPBinary string `yaml:"ilp_binary"`
}

// Defaults returns the built-in option values, before any file or flag
// override is applied.
func Defaults() Options {
	return Options{
		TimeLimitSec: 60,
		NodeLimit:    5_000_000,
		IterLimit:    10000,
		ILPTimeLimit: 30,
		ILPThreads:   1,
		ILPBinary:    "esat-solver",
	}
}

// Load builds an Options by starting from Defaults, merging in path (if
// non-empty and the file exists) as YAML, then applying any flag on fs
// that was explicitly set by the caller. fs may be nil, in which case
// only defaults and the file are consulted.
func Load(path string, fs *pflag.FlagSet) (Options, error) {
	opts := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Options{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &opts); err != nil {
			return Options{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if fs != nil {
		applyFlags(&opts, fs)
	}
	return opts, nil
}

func applyFlags(opts *Options, fs *pflag.FlagSet) {
	visit := func(name string, set func(*pflag.Flag)) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			set(f)
		}
	}
	visit("time-limit-sec", func(f *pflag.Flag) { opts.TimeLimitSec, _ = fs.GetFloat64(f.Name) })
	visit("node-limit", func(f *pflag.Flag) { opts.NodeLimit, _ = fs.GetInt(f.Name) })
	visit("iter-limit", func(f *pflag.Flag) { opts.IterLimit, _ = fs.GetInt(f.Name) })
	visit("use-multi-patterns", func(f *pflag.Flag) { opts.UseMultiPatterns, _ = fs.GetBool(f.Name) })
	visit("no-cycle", func(f *pflag.Flag) { opts.NoCycle, _ = fs.GetBool(f.Name) })
	visit("filter-after", func(f *pflag.Flag) { opts.FilterAfter, _ = fs.GetBool(f.Name) })
	visit("ilp-time-limit", func(f *pflag.Flag) { opts.ILPTimeLimit, _ = fs.GetFloat64(f.Name) })
	visit("ilp-threads", func(f *pflag.Flag) { opts.ILPThreads, _ = fs.GetInt(f.Name) })
	visit("ilp-no-order", func(f *pflag.Flag) { opts.ILPNoOrder, _ = fs.GetBool(f.Name) })
	visit("ilp-class-constraint", func(f *pflag.Flag) { opts.ILPClassConstraint, _ = fs.GetBool(f.Name) })
	visit("ilp-order-var-int", func(f *pflag.Flag) { opts.ILPOrderVarInt, _ = fs.GetBool(f.Name) })
	visit("ilp-binary", func(f *pflag.Flag) { opts.ILPBinary, _ = fs.GetString(f.Name) })
}

// RegisterFlags adds one flag per Options key to fs, seeded from
// Defaults so an unset flag's zero-Changed value never clobbers a value
// already loaded from a file.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.Float64("time-limit-sec", d.TimeLimitSec, "wall-clock cap for saturation, in seconds")
	fs.Int("node-limit", d.NodeLimit, "hard cap on total e-nodes")
	fs.Int("iter-limit", d.IterLimit, "max saturation iterations")
	fs.Bool("use-multi-patterns", d.UseMultiPatterns, "enable the multi-premise scheduler")
	fs.Bool("no-cycle", d.NoCycle, "assert the input is DAG-only and enable the online cycle filter")
	fs.Bool("filter-after", d.FilterAfter, "use the offline cycle filter instead of the online one")
	fs.Float64("ilp-time-limit", d.ILPTimeLimit, "wall-clock cap forwarded to the extractor")
	fs.Int("ilp-threads", d.ILPThreads, "thread count forwarded to the extractor")
	fs.Bool("ilp-no-order", d.ILPNoOrder, "disable ordering constraints in the extractor")
	fs.Bool("ilp-class-constraint", d.ILPClassConstraint, "emit per-class pick-exactly-one constraints")
	fs.Bool("ilp-order-var-int", d.ILPOrderVarInt, "require order variables to be integral")
	fs.String("ilp-binary", d.ILPBinary, "path to the extractor binary")
}

// RewriteLimits projects the saturation-relevant options onto
// rewrite.Limits.
func (o Options) RewriteLimits() rewrite.Limits {
	return rewrite.Limits{
		IterLimit: o.IterLimit,
		NodeLimit: o.NodeLimit,
		TimeLimit: time.Duration(o.TimeLimitSec * float64(time.Second)),
	}
}

// MultiPatternLimits returns the scheduler's own budget
// (multipattern.NewLimits), used only when UseMultiPatterns is set. It
// is independent of the main driver's NodeLimit/IterLimit.
func (o Options) MultiPatternLimits() multipattern.Limits {
	return multipattern.NewLimits()
}

// CycleMode derives the cycle-filter mode from NoCycle/FilterAfter.
// NoCycle requests the online filter; FilterAfter overrides it to run
// the offline pass instead. Neither set means no filtering at all.
func (o Options) CycleMode() cycle.Mode {
	switch {
	case o.NoCycle && o.FilterAfter:
		return cycle.ModeOffline
	case o.NoCycle:
		return cycle.ModeOnline
	case o.FilterAfter:
		return cycle.ModeOffline
	default:
		return cycle.ModeOff
	}
}

// SolverOptions projects the ilp_* options onto ilp.SolverOptions.
func (o Options) SolverOptions() ilp.SolverOptions {
	return ilp.SolverOptions{
		Binary:          o.ILPBinary,
		TimeLimitSec:    o.ILPTimeLimit,
		Threads:         o.ILPThreads,
		NoOrder:         o.ILPNoOrder,
		ClassConstraint: o.ILPClassConstraint,
		OrderVarInt:     o.ILPOrderVarInt,
	}
}

package cmd

import "github.com/spf13/pflag"

// addGlobalFlags registers the flags every subcommand shares: config
// file location and logging verbosity. The driver option flags from
// internal/config are registered per subcommand (config.RegisterFlags).
func addGlobalFlags(f *pflag.FlagSet) {
	f.String("config", "", "path to an esat.yaml configuration file")
	f.Bool("verbose", false, "log saturation iterations at debug level")
}

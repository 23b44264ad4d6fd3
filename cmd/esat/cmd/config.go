package cmd

import "github.com/tensorgraph/esat/internal/config"

// loadConfig resolves the driver options for the current command,
// layering --config's file over the built-in defaults and the
// command's own flags over that, per internal/config.Load.
func loadConfig(c *Command) (config.Options, error) {
	path, _ := c.Flags().GetString("config")
	return config.Load(path, c.Flags())
}

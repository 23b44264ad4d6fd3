// Command esat runs the equality-saturation optimizer over a tensor
// computation graph read from a JSON program file.
package main

import (
	"os"

	"github.com/tensorgraph/esat/cmd/esat/cmd"
)

func main() {
	os.Exit(cmd.Main())
}

// Command relaycored runs the live broadcast stream multiplexer daemon.
package main

import (
	"fmt"
	"os"

	"github.com/jmylchreest/relaycore/cmd/relaycored/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rnxctl is the command line front end of the RINEX engine: scanning,
// conversion, merging, decimation, reporting and dictionary checks.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

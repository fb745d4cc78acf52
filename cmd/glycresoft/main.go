// Glycresoft - glycopeptide tandem mass spectrum identification
package main

import (
	"fmt"
	"os"

	"github.com/BostonUniversityCBMS/Glycresoft/cmd/glycresoft/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

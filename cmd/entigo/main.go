// Command entigo resolves entities in utterances from the command line.
package main

import (
	"os"

	"github.com/turtacn/entigo/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

//Personal.AI order the ending

package main

import (
	"os"

	"github.com/solatis/searchtrace/cmd/searchtrace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

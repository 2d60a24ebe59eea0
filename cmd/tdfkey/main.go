package main

import (
	"os"

	"github.com/ChrisMcGann/TDFKey/cmd/tdfkey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

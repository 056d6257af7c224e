package main

import (
	"os"

	"github.com/rotacore/rota/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/jumuia/creditlens/cmd/creditlens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

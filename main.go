package main

import (
	"os"

	"github.com/logreplay/camserve/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/mpavlenko/docketsync/internal/server"
)

func main() {
	if err := server.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

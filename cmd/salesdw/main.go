package main

import (
	"fmt"
	"os"

	"salesdw/internal/cli"
	_ "salesdw/internal/storage/all"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

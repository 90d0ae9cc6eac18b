package main

import (
	"os"

	"kapacity/api/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

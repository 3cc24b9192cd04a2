package main

import (
	"os"

	"github.com/JonMunkholm/tabimport/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

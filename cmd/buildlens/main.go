package main

import (
	"os"

	"github.com/dshills/buildlens/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}

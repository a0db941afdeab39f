package main

import (
	"os"
	_ "time/tzdata"

	"janani-health/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

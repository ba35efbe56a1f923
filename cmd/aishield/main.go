package main

import (
	"os"

	"github.com/madetocreate/ai-shield/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

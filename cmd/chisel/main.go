// # cmd/chisel/main.go
package main

import (
	"os"

	"chisel/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}

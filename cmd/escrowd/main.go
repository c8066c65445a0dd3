package main

import "github.com/LeJamon/goxrpl-escrow/internal/cli"

func main() {
	cli.Execute()
}

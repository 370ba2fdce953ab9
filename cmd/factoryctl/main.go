package main

import "github.com/goliatone/go-factory/internal/cli"

func main() {
	cli.Execute()
}

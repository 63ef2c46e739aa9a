package main

import "github.com/assortlab/noos-go/internal/adapters/cli"

func main() {
	cli.Execute()
}

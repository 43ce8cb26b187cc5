package main

import "quarry-packages/internal/cli"

func main() {
	cli.Execute()
}

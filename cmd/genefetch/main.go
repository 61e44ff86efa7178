package main

import "genefetch/internal/cli"

func main() {
	cli.Execute()
}

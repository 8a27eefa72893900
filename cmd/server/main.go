package main

import "picquest/internal/cli"

func main() {
	cli.Execute()
}

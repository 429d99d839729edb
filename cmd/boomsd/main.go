package main

import "github.com/boomsapp/boomsd/internal/cli"

func main() {
	cli.Execute()
}

package main

import "divrag/internal/cli"

func main() {
	cli.Execute()
}

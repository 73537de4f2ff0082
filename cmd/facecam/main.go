package main

import "facecam/internal/cli"

func main() {
	cli.Execute()
}

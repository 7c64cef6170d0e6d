package main

import "carspire/internal/cli"

func main() {
	cli.Execute()
}

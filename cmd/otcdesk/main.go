package main

import (
	"otcdesk/internal/cli"
)

func main() {
	cli.Execute()
}

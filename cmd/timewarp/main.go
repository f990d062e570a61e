package main

import "github.com/forPelevin/timewarp/internal/cli"

func main() {
	cli.Main()
}

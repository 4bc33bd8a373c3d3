package main

import "github.com/HerbigniauxBenoit/spsync/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/msomdec/care-practice/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/mvp-joe/greppy/internal/cli"

func main() {
	cli.Execute()
}

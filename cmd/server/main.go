package main

import "lms/internal/cli"

func main() {
	cli.Execute()
}

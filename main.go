package main

import "chatdash/cli"

func main() {
	cli.Execute()
}

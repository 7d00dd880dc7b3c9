package main

import "rpgm-translator/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/actuallyakshat/chrona/cmd"

func main() {
	cmd.Run()
}

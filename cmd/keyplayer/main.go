package main

import "keyplayer/cmd/keyplayer/cmd"

func main() {
	cmd.Execute()
}

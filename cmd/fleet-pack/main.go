package main

import "github.com/sternelee/fleet-chat/cmd/fleet-pack/cmd"

func main() {
	cmd.Execute()
}

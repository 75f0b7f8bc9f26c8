package main

import "github.com/bolpress/newsharvest/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/kozaktomas/face-sculptor/cmd"

func main() {
	cmd.Execute()
}

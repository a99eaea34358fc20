package main

import "github.com/kozaktomas/face-login/cmd"

func main() {
	cmd.Execute()
}

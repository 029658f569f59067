package main

import "github.com/codedswitch/studio/cmd"

func main() {
	cmd.Execute()
}

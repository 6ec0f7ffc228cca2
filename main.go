package main

import "fmsync/cmd"

func main() {
	cmd.Execute()
}

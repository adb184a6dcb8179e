package main

import "github.com/killallgit/vivu/cmd"

func main() {
	cmd.Execute()
}

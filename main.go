package main

import "github.com/nextlevelbuilder/turnero/cmd"

func main() {
	cmd.Execute()
}

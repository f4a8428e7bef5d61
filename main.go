package main

import "github.com/nikkitan/dcpcore/cmd"

func main() {
	cmd.Execute()
}

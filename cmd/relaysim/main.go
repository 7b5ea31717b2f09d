package main

import "github.com/dd0wney/cluso-relaysim/cmd/relaysim/cmd"

func main() {
	cmd.Execute()
}

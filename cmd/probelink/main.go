package main

import "github.com/OpenTraceLab/probelink/cmd/probelink/cmd"

func main() {
	cmd.Execute()
}

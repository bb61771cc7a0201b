package main

import "hpl3-export/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/duetvoice/duet/cmd"

func main() {
	cmd.Execute()
}

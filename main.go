package main

import "github.com/vendahub/zapbot/cmd"

func main() {
	cmd.Execute()
}

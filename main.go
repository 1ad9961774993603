package main

import "github.com/samsaffron/webchat/cmd"

func main() {
	cmd.Execute()
}

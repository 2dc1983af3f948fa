package main

import "github.com/kfget/kfget/cmd"

func main() {
	cmd.Execute()
}

package main

import "snowball/cmd"

func main() {
	cmd.Execute()
}

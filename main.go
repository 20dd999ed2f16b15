package main

import "github.com/sergev/cerelog/cmd"

func main() {
	cmd.Execute()
}

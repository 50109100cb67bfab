package main

import "github.com/example/post-scheduler/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/tilecraft/go-tilebundler/internal/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/fibril-audio/fibril/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"pixload/cmd"
)

func main() {
	cmd.Execute()
}

// Package main is the entry point of the authormigrate command.
package main

import (
	"authormigrate/cmd"
)

func main() {
	cmd.Execute()
}

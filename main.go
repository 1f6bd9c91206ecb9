// Package main is the entry point of the granule migration tool.
package main

import "granulemigration/cmd"

func main() {
	cmd.Execute()
}

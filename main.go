package main

import "github.com/lepinkainen/bookstor/cmd"

var execute = cmd.Execute

func main() {
	execute()
}

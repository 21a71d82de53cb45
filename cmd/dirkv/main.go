// Command dirkv is a directory-backed key-value store.
package main

import "github.com/princespaghetti/dirkv/internal/cli"

func main() {
	cli.Execute()
}

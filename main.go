// The main package for the pricewatch executable.
package main

import (
	"github.com/pricewatch/extractor/cmd"
)

func main() {
	cmd.Execute()
}

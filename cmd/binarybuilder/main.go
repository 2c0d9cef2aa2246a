package main

import "github.com/NeoGeographyToolkit/binarybuilder/cmd/binarybuilder/internal"

func main() {
	internal.Execute()
}

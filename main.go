package main

import "github.com/stegokit/qrmark/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/lichtbild/fotoadmin/cmd/fotoadmin/cmd"

func main() {
	cmd.Execute()
}

package cmd

import "fmt"

const banner = `
  __       _              _           _
 / _| ___ | |_ ___   __ _  __| |_ __ ___ (_)_ __
| |_ / _ \| __/ _ \ / _` + "`" + ` |/ _` + "`" + ` | '_ ` + "`" + ` _ \| | '_ \
|  _| (_) | || (_) | (_| | (_| | | | | | | | | | |
|_|  \___/ \__\___/ \__,_|\__,_|_| |_| |_|_|_| |_|
`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Lichtbild Admin Console - Version %s\x1b[0m\n\n", Version)
}

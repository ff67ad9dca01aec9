package main

import (
	"github.com/rustyeddy/macdtrader/cmd/macdtrader/cmd"
)

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/i474232898/weather-watch-sync/cmd/watchsync/commands"
)

func main() {
	commands.Execute()
}

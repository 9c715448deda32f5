package main

import (
	"github.com/jupiterone/integration-sdk-go/cmd/collector/commands"
)

func main() {
	commands.Execute()
}

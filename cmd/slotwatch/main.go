package main

import (
	"context"

	"slotwatch/cmd/slotwatch/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}

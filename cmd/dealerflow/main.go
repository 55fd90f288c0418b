package main

import (
	"log/slog"

	"github.com/dealerflow/dealerflow/pkg/dealerflow"
)

func main() {

	//you may do your own logger setup here or use this default one with slog
	dealerflow.SetupLogger()

	if err := dealerflow.Start(nil); err != nil {
		slog.Error("Engine exited with error", "error", err)
	}
}

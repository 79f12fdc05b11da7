package main

import (
	"context"
	"time"

	"vcore-bridge/platform"
	"vcore-bridge/services/config"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	cfg, err := config.Load(config.DefaultBoard)
	if err != nil {
		println("[main] config:", err.Error())
		halt()
	}
	board, err := platform.Setup(cfg)
	if err != nil {
		println("[main] setup:", err.Error())
		halt()
	}

	st := platform.Wire(cfg, board)

	if err := st.Run(context.Background()); err != nil {
		println("[main] bridge stopped:", err.Error())
	}
	st.Close()
	halt()
}

func halt() {
	for {
		time.Sleep(time.Hour)
	}
}

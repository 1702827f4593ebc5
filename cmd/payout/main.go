package main

import (
	"chainshop/internal/worker"
)

func main() {
	worker.PayoutInit()
}

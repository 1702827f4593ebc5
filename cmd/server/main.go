package main

import (
	"chainshop/internal/server"
)

func main() {
	server.ApiInit()
}

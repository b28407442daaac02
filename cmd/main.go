package main

import (
	"eurobank-ledger/app"
)

func main() {
	app.Run()
}

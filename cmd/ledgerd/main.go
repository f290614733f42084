package main

import "github.com/SscSPs/transfer_engine/internal/cli"

// @title Ledger Transfer Engine API
// @version 1.0
// @description Atomic transfers, deposits and withdrawals between accounts with an append-only journal.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @security BearerAuth
func main() {
	cli.Execute()
}

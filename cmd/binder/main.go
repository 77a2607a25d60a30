// Binder merges PDF sections into one document with stamped page numbers.
//
//	@title			Binder API
//	@version		1.0
//	@description	Section list, numbering layout and preview assembly.
//
//	@host		localhost:8080
//	@BasePath	/
//
//go:generate swag init -g main.go -d ./,../../internal/server/endpoints -o ../../docs/swagger --parseDependency --parseInternal
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Set up context with signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

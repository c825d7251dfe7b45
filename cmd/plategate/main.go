package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/anime-shed/plategate-go/internal/cli"
	_ "github.com/anime-shed/plategate-go/internal/ocr/tesseract"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "plategate:", err)
		stop()
		os.Exit(1)
	}
}

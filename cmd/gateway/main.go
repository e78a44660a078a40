package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	commonlog "voice_gateway/server/common/log"
	"voice_gateway/server/gateway/app"
)

func main() {
	defer func() { _ = commonlog.Sync() }()

	cfg := app.LoadConfig()
	server, err := app.NewServer(cfg)
	if err != nil {
		commonlog.Errorf("initialize server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		commonlog.Infof("start http server on :%s", cfg.Port)
		if err := server.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			commonlog.Errorf("run http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		commonlog.Warnf("shutdown server gracefully: %v", err)
	}
	commonlog.Infof("server stopped")
}

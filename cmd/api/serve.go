package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Albumy/internal/router"
	"Albumy/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

var serveFlags = map[string]cobraflags.Flag{
	configFlag: configFlagDef(),
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  serveCommand,
	}
	cobraflags.RegisterMap(cmd, serveFlags)
	return cmd
}

func serveCommand(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, serveFlags[configFlag].GetString())
	if err != nil {
		return err
	}
	defer a.close()

	gin.SetMode(a.cfg.Server.Mode)
	relayer := service.NewOutboxRelayer(a.db, a.outboxSender(), a.cfg.Kafka.RelayBatchSize, a.cfg.Kafka.RelayInterval)
	go relayer.Run(ctx)

	srv := &http.Server{
		Addr:    ":" + a.cfg.Server.Port,
		Handler: router.InitRouter(ctx, a.routerDeps()),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("albumy listening on :%s", a.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待中断信号，5 秒内处理完在途请求
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Println("shutting down server...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("server exited")
	return nil
}

// Package web exposes a read-only debug surface over the trade server.
package web

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"stockgate/internal/config"
	"stockgate/internal/logger"
	"stockgate/internal/order"
	"stockgate/internal/tradeserver"
)

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(addr string, cfg *config.Config, ts *tradeserver.Server) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "account": ts.AccountID()})
	})
	router.GET("/state", func(c *gin.Context) {
		view := ts.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"account_id": view.AccountID,
			"type":       view.Type,
			"state":      view.State,
		})
	})
	router.GET("/orders", func(c *gin.Context) {
		view := ts.Snapshot()
		// The snapshot slice is shared between requests, sort a copy.
		orders := make([]*order.Order, len(view.Orders))
		copy(orders, view.Orders)
		sort.Slice(orders, func(i, j int) bool { return orders[i].CustID < orders[j].CustID })
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	})

	router.GET("/config", func(c *gin.Context) {
		out, err := config.Dump(cfg)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.String(http.StatusOK, out)
	})

	return &Server{addr: addr, router: router}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Infof("web: listening addr=%s", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("web: shutdown failed err=%v", err)
		}
		return ctx.Err()
	}
}

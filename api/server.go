// Package api exposes the seller catalog over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"bookstore-catalog/catalog"
)

// SellerService is the part of catalog.Manager the handlers depend on.
type SellerService interface {
	CreateSeller(ctx context.Context, in catalog.IncomingSeller) (catalog.ReturnedSeller, error)
	ListSellers(ctx context.Context) (catalog.ReturnedAllSellers, error)
	GetSellerWithBooks(ctx context.Context, id int64) (catalog.ReturnedSellerBooks, error)
	UpdateSeller(ctx context.Context, id int64, in catalog.UpdatedSeller) (catalog.ReturnedSeller, error)
	DeleteSeller(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type Application struct {
	logger  *slog.Logger
	sellers SellerService
	env     string
	version string
}

func New(logger *slog.Logger, sellers SellerService, env, version string) *Application {
	return &Application{logger: logger, sellers: sellers, env: env, version: version}
}

// routePrefixes are the mount points of the seller routes. /api/v1 keeps
// clients of the previous deployment working.
var routePrefixes = []string{"", "/api/v1"}

func (app *Application) Routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/healthcheck", app.healthcheckHandler)

	for _, prefix := range routePrefixes {
		for _, base := range []string{prefix + "/sellers", prefix + "/sellers/"} {
			router.HandlerFunc(http.MethodPost, base, app.createSellerHandler)
			router.HandlerFunc(http.MethodGet, base, app.listSellersHandler)
		}
		router.HandlerFunc(http.MethodGet, prefix+"/sellers/:id", app.showSellerHandler)
		router.HandlerFunc(http.MethodPut, prefix+"/sellers/:id", app.updateSellerHandler)
		router.HandlerFunc(http.MethodDelete, prefix+"/sellers/:id", app.deleteSellerHandler)
	}

	return app.requestID(app.logRequests(app.recoverPanic(router)))
}

// Serve runs the HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func (app *Application) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("starting server", "addr", srv.Addr, "env", app.env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.logger.Info("shutting down server", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	app.logger.Info("stopped server", "addr", srv.Addr)
	return nil
}

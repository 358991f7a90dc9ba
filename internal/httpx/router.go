package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dawidbera/secure-serverless-marketplace/internal/httpx/middlewares"
)

// NewRouter assembles the route table. Everything except the health probe
// sits behind bearer authentication.
func NewRouter(handler *Handler, signingKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.TraceRequests)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handler.Health)

	r.Group(func(r chi.Router) {
		r.Use(middlewares.BearerAuth(signingKey))

		r.Post("/products", handler.CreateProduct)
		r.Get("/products", handler.ListProducts)
		r.Get("/products/{id}", handler.GetProduct)
		r.Get("/products/{id}/download-url", handler.DownloadURL)

		r.Post("/orders", handler.PlaceOrder)
		r.Get("/orders/my", handler.ListMyOrders)
	})

	return r
}

package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/mealplan-api/internal/api"
	apiMiddleware "github.com/phrazzld/mealplan-api/internal/api/middleware"
	"github.com/phrazzld/mealplan-api/internal/platform/logger"
	"github.com/phrazzld/mealplan-api/internal/platform/metrics"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware(app.logger))
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	mealPlanHandler := api.NewMealPlanHandler(app.mealPlanService, api.WaitConfig{
		DefaultTimeout: app.config.Task.DefaultWait(),
		MaxTimeout:     app.config.Task.MaxWait(),
	})

	r.Route("/meal-plan", func(r chi.Router) {
		if app.jwtService != nil || app.keyVerifier != nil {
			r.Use(apiMiddleware.NewAuthMiddleware(app.jwtService, app.keyVerifier).Authenticate)
		}

		r.Post("/generate", mealPlanHandler.Generate)
		r.Get("/status/{"+api.TaskIDParam+"}", mealPlanHandler.GetStatus)
		r.Get("/wait/{"+api.TaskIDParam+"}", mealPlanHandler.Wait)
	})

	r.Handle("/metrics", metrics.Handler(app.registry))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}

// requestLogger logs one line per request through the request's logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.FromContext(r.Context()).Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Package pushdelivery assembles the push-delivery service: the notify and
// token-registration HTTP surface plus the optional Pub/Sub ingestion
// pipeline, both funnelling into the same delivery core.
package pushdelivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-delivery/internal/api"
	"github.com/tinywideclouds/go-push-delivery/internal/pipeline"
	"github.com/tinywideclouds/go-push-delivery/pkg/push"
	"github.com/tinywideclouds/go-push-delivery/pushdelivery/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[pipeline.NotifyEvent]
	logger          *slog.Logger
}

// New assembles the service. The consumer is optional: passing nil runs the
// service in HTTP-only mode with no ingestion pipeline.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	delivery api.Sender,
	tokenStore push.TokenStore,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Ingestion pipeline (optional)
	var streamingService *messagepipeline.StreamingService[pipeline.NotifyEvent]
	if consumer != nil {
		processor := pipeline.NewProcessor(delivery, logger)

		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			consumer,
			pipeline.NotifyEventTransformer,
			processor,
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	}

	// 3. APIs
	notifyAPI := api.NewNotifyAPI(delivery, logger)
	tokenAPI := api.NewTokenAPI(tokenStore, logger)

	// 4. Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(handlerFunc))
	}

	// Delivery path: called by trusted backend event producers. The method
	// pattern gives non-POST requests a 405 for free.
	handle("POST /notify", notifyAPI.Notify)

	// Registration paths: the client-registration flow.
	handle("POST /api/v1/register", tokenAPI.Register)
	handle("POST /api/v1/unregister", tokenAPI.Unregister)

	// CORS preflight
	mux.Handle("OPTIONS /notify", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Core processing pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			finalErr = err
		}
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}

package main

import (
	"context"
	"log"
	"time"

	"atlas-graph/infrastructure/config"
	"atlas-graph/infrastructure/di"
	"atlas-graph/interfaces/http/rest"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
)

// init runs during cold start. The container and router are built once
// and reused across invocations.
func init() {
	start := time.Now()

	ctx := context.Background()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	container.Start(ctx)

	router := rest.NewRouter(
		container.CommandBus,
		container.QueryBus,
		cfg,
		container.Metrics,
		container.RateLimiter,
		container.Logger,
	)

	handler := router.Setup()
	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Router did not produce a chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Cold start complete",
		zap.Duration("duration", time.Since(start)),
	)
}

// Handler proxies API Gateway v2 events through the HTTP router.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	lambda.Start(Handler)
}

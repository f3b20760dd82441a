// Package main implements the websocket $connect and $disconnect Lambda.
// Connections are authenticated with the same JWT the REST API accepts
// and registered for graph event push.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"atlas-graph/application/ports"
	dynamorepo "atlas-graph/infrastructure/persistence/dynamodb"
	"atlas-graph/pkg/auth"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var (
	connections ports.ConnectionRepository
	validator   *auth.JWTValidator
)

func init() {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	tableName := os.Getenv("TABLE_NAME")
	if tableName == "" {
		tableName = "atlas-graph"
	}
	connections = dynamorepo.NewConnectionRepository(dynamodb.NewFromConfig(cfg), tableName)

	validator, err = auth.NewJWTValidator(auth.JWTConfig{
		Secret: os.Getenv("JWT_SECRET"),
		Issuer: os.Getenv("JWT_ISSUER"),
	})
	if err != nil {
		log.Fatalf("Failed to build JWT validator: %v", err)
	}
}

func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.RequestContext.RouteKey {
	case "$disconnect":
		if err := connections.Delete(ctx, request.RequestContext.ConnectionID); err != nil {
			log.Printf("Failed to remove connection %s: %v", request.RequestContext.ConnectionID, err)
		}
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
	default:
		return connect(ctx, request)
	}
}

func connect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	token := request.QueryStringParameters["token"]
	if token == "" {
		token = request.Headers["Authorization"]
	}

	claims, err := validator.ValidateToken(token)
	if err != nil {
		log.Printf("Connection rejected: %v", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusUnauthorized,
			Body:       `{"error":"unauthorized"}`,
		}, nil
	}

	conn := ports.Connection{
		ID: request.RequestContext.ConnectionID,
		Metadata: map[string]string{
			"userId":   claims.UserID,
			"endpoint": request.RequestContext.DomainName + "/" + request.RequestContext.Stage,
		},
		ConnectedAt: time.Now(),
	}
	if err := connections.Save(ctx, conn); err != nil {
		log.Printf("Failed to store connection: %v", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error":"internal server error"}`,
		}, nil
	}

	log.Printf("Connection %s established for user %s", conn.ID, claims.UserID)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}

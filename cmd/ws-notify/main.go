// Package main implements the event push Lambda. It consumes graph
// events from EventBridge and fans them out to live websocket
// connections through the API Gateway Management API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	"atlas-graph/application/ports"
	dynamorepo "atlas-graph/infrastructure/persistence/dynamodb"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

var (
	connections ports.ConnectionRepository
	apiClient   *apigatewaymanagementapi.Client
)

// pushMessage is the frame delivered to websocket clients.
type pushMessage struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func init() {
	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	tableName := os.Getenv("TABLE_NAME")
	if tableName == "" {
		tableName = "atlas-graph"
	}
	connections = dynamorepo.NewConnectionRepository(dynamodb.NewFromConfig(cfg), tableName)

	endpoint := os.Getenv("WEBSOCKET_ENDPOINT")
	if endpoint == "" {
		log.Fatal("WEBSOCKET_ENDPOINT is required")
	}
	apiClient = apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
}

func handler(ctx context.Context, event events.CloudWatchEvent) error {
	msg, err := json.Marshal(pushMessage{
		Type:      event.DetailType,
		Timestamp: time.Now().Unix(),
		Data:      event.Detail,
	})
	if err != nil {
		return err
	}

	active, err := connections.ListActive(ctx)
	if err != nil {
		return err
	}

	var delivered, stale int
	for _, conn := range active {
		_, err := apiClient.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(conn.ID),
			Data:         msg,
		})
		if err != nil {
			var gone *apigwtypes.GoneException
			if errors.As(err, &gone) {
				// The client disconnected without a clean $disconnect.
				if delErr := connections.Delete(ctx, conn.ID); delErr != nil {
					log.Printf("Failed to drop stale connection %s: %v", conn.ID, delErr)
				}
				stale++
				continue
			}
			log.Printf("Failed to push to connection %s: %v", conn.ID, err)
			continue
		}
		delivered++
	}

	log.Printf("Event %s pushed to %d connections (%d stale removed)", event.DetailType, delivered, stale)
	return nil
}

func main() {
	lambda.Start(handler)
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/careatlas/therapist-directory/internal/aws"
	"github.com/careatlas/therapist-directory/internal/handlers"
	"github.com/careatlas/therapist-directory/internal/secrets"
)

const defaultTokenTTL = time.Hour

func setupRouter(cfg handlers.HandlerConfig) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if err := handlers.RegisterTherapistRoutes(r, cfg); err != nil {
		return nil, err
	}

	return r, nil
}

// tokenSecret resolves the pagination secret: an SSM parameter when
// PAGINATION_SECRET_PARAM is set, the raw env var otherwise.
func tokenSecret(ctx context.Context, clients *aws.Clients) (string, error) {
	if param := os.Getenv("PAGINATION_SECRET_PARAM"); param != "" {
		store, err := secrets.New(clients.SSM)
		if err != nil {
			return "", err
		}
		return store.GetParameter(ctx, param)
	}
	return os.Getenv("PAGINATION_SECRET"), nil
}

func tokenTTL() time.Duration {
	raw := os.Getenv("PAGINATION_TOKEN_TTL")
	if raw == "" {
		return defaultTokenTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		log.Printf("invalid PAGINATION_TOKEN_TTL %q, using default", raw)
		return defaultTokenTTL
	}
	return ttl
}

func main() {
	ctx := context.Background()

	clients, err := aws.NewClients(ctx)
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	secret, err := tokenSecret(ctx, clients)
	if err != nil {
		log.Fatalf("failed to resolve pagination secret: %v", err)
	}

	indexName := os.Getenv("AREA_TYPE_INDEX")
	if indexName == "" {
		indexName = "areaTypeIndex"
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient: clients.DynamoDB,
		SQSClient:      clients.SQS,
		TableName:      os.Getenv("THERAPISTS_TABLE"),
		IndexName:      indexName,
		QueueURL:       os.Getenv("THERAPIST_EVENTS_QUEUE_URL"),
		DefaultOwner:   os.Getenv("DEFAULT_OWNER_ID"),
		TokenTTL:       tokenTTL(),
		TokenSecret:    secret,
	}

	r, err := setupRouter(cfg)
	if err != nil {
		log.Fatalf("failed to set up router: %v", err)
	}

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		addr := ":8080"
		log.Printf("running local server on %s", addr)
		if err := r.Run(addr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

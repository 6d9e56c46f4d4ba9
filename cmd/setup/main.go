package main

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/bbernstein/flowebb/tidesensors/internal/bootstrap"
	"github.com/bbernstein/flowebb/tidesensors/internal/cache"
	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/handler"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
)

var (
	lambdaStart  = lambda.Start // Allow mocking of lambda.Start in tests
	setupHandler *handler.SetupHandler
	setupOnce    sync.Once
)

func initialize() {
	setupOnce.Do(func() {
		cfg := config.LoadFromEnv()
		cfg.InitializeLogging()

		ctx := context.Background()
		deps, err := bootstrap.New(ctx, cfg, config.GetCacheConfig())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to build upstream dependencies")
		}

		dynamoClient, err := cache.NewDynamoClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create DynamoDB client")
		}
		store := setup.NewDynamoEntryStore(dynamoClient, cfg.EntryTable)

		setupHandler = handler.NewSetupHandler(setup.NewFlow(deps.Resolver, store))
		log.Info().Str("table", cfg.EntryTable).Msg("Setup handler initialized")
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return setupHandler.HandleRequest(ctx, request)
}

func main() {
	initialize()
	lambdaStart(handleRequest)
}

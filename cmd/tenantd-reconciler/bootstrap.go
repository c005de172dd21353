package main

import (
	"context"
	"fmt"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/pantheon-ops/tenantd/pkg/config"
	"github.com/pantheon-ops/tenantd/pkg/idp"
	"github.com/pantheon-ops/tenantd/pkg/kv"
	"github.com/pantheon-ops/tenantd/pkg/notify"
)

// buildStore constructs the configured store backend. The returned cleanup
// releases backend connections on exit.
func buildStore(ctx context.Context, cfg *config.Config) (kv.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Store.Type {
	case config.StoreTypeDynamo:
		awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Store.DynamoRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Store.DynamoEndpoint != "" {
				o.BaseEndpoint = &cfg.Store.DynamoEndpoint
			}
		})
		return kv.NewDynamoStore(client, cfg.Store.DynamoTable), noop, nil
	case config.StoreTypePostgres:
		store, err := kv.NewPostgresStore(cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.StoreTypeMemory:
		return kv.NewMemoryStore(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}

// buildProvider constructs the Cognito adapter. An empty user pool id
// yields an unconfigured adapter; the engine then refuses to run.
func buildProvider(ctx context.Context, cfg *config.Config) (idp.Adapter, error) {
	if cfg.Cognito.UserPoolID == "" {
		return idp.NewCognitoAdapter(nil, ""), nil
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Cognito.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return idp.NewCognitoAdapter(cognitoidentityprovider.NewFromConfig(awsCfg), cfg.Cognito.UserPoolID), nil
}

// buildNotifier constructs the SES dispatcher, or a noop when no sender is
// configured.
func buildNotifier(ctx context.Context, cfg *config.Config) (notify.Dispatcher, error) {
	if cfg.SES.Sender == "" {
		return notify.NoopDispatcher{}, nil
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.SES.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return notify.NewSESDispatcher(sesv2.NewFromConfig(awsCfg), cfg.SES.Sender), nil
}

// Package lambdaboot provides the shared Lambda cold-start bootstrap.
//
// The studio Lambda needs AWS config, S3, DynamoDB, EventBridge, an SSM
// secret fetch, and startup logging. Each helper fatals on misconfiguration
// so a broken deployment fails on the first invocation instead of mid-run.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/portrait-studio/internal/events"
	"github.com/fpang/portrait-studio/internal/logging"
	"github.com/fpang/portrait-studio/internal/store"
)

// DefaultGeminiKeyParam is the SSM path of the Gemini API key.
const DefaultGeminiKeyParam = "/portrait-studio/prod/gemini-api-key"

// DefaultPerceptionKeyParam is the SSM path of the perception service key.
const DefaultPerceptionKeyParam = "/portrait-studio/prod/perception-api-key"

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds the S3 client and the image bucket name.
type S3Clients struct {
	Client *s3.Client
	Bucket string
}

// InitAWS loads the default AWS config.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client for bucket. Fatals if bucket is empty.
func InitS3(cfg aws.Config, bucket string) S3Clients {
	if bucket == "" {
		log.Fatal().Msg("Image bucket is required (MEDIA_BUCKET_NAME)")
	}
	return S3Clients{
		Client: s3.NewFromConfig(cfg),
		Bucket: bucket,
	}
}

// InitDynamo creates the run store. Returns nil (with a warning) when no
// table is configured, which disables run persistence.
func InitDynamo(cfg aws.Config, table string, ttl time.Duration) *store.DynamoStore {
	if table == "" {
		log.Warn().Msg("DynamoDB table not set, run records disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table, ttl)
}

// InitEvents creates the EventBridge publisher. Returns nil when busName is
// empty, which disables completion events.
func InitEvents(cfg aws.Config, busName string) *events.Publisher {
	if busName == "" {
		log.Warn().Msg("Event bus not set, completion events disabled")
		return nil
	}
	return events.NewPublisher(eventbridge.NewFromConfig(cfg), busName)
}

// LoadSecret copies an SSM SecureString into envVar unless envVar is already
// set. paramEnvVar names the variable holding the parameter path; defaultParam
// is used when it is unset. Fatals on error.
func LoadSecret(ssmClient *ssm.Client, envVar, paramEnvVar, defaultParam string) string {
	if os.Getenv(envVar) != "" {
		return ""
	}
	paramName := logging.EnvOrDefault(paramEnvVar, defaultParam)
	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read secret from SSM")
	}
	os.Setenv(envVar, aws.ToString(result.Parameter.Value))
	log.Debug().Str("param", paramName).Str("envVar", envVar).Dur("elapsed", time.Since(ssmStart)).Msg("Secret loaded from SSM")
	return paramName
}

// LoadGeminiKey fetches GEMINI_API_KEY from SSM if not already set and
// returns the parameter path read, or "" when the env var was preset.
func LoadGeminiKey(ssmClient *ssm.Client) string {
	return LoadSecret(ssmClient, "GEMINI_API_KEY", "SSM_API_KEY_PARAM", DefaultGeminiKeyParam)
}

// LoadPerceptionKey fetches STUDIO_PERCEPTION_API_KEY from SSM if not
// already set.
func LoadPerceptionKey(ssmClient *ssm.Client) string {
	return LoadSecret(ssmClient, "STUDIO_PERCEPTION_API_KEY", "SSM_PERCEPTION_KEY_PARAM", DefaultPerceptionKeyParam)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}

// Package main provides the Lambda entry point for identity-preserving
// portrait edits.
//
// One invocation runs one edit end to end: safety screen, perception,
// constrained generation with validation retries, then the run record is
// written to DynamoDB and a PortraitEditCompleted event is sent to
// EventBridge.
//
// Memory: 1 GB
// Timeout: 10 minutes (the pipeline's own total timeout is 6 minutes)
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/portrait-studio/internal/config"
	"github.com/fpang/portrait-studio/internal/generation"
	"github.com/fpang/portrait-studio/internal/imagestore"
	"github.com/fpang/portrait-studio/internal/lambdaboot"
	"github.com/fpang/portrait-studio/internal/logging"
	"github.com/fpang/portrait-studio/internal/perception"
	"github.com/fpang/portrait-studio/internal/pipeline"
)

// commitHash is overridden by -ldflags at build.
var commitHash = "dev"

var h *handler

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load(os.Getenv("STUDIO_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	aws := lambdaboot.InitAWS()
	s3s := lambdaboot.InitS3(aws.Config, cfg.Storage.Bucket)
	runs := lambdaboot.InitDynamo(aws.Config, cfg.Storage.Table, cfg.Storage.RecordTTL)
	publisher := lambdaboot.InitEvents(aws.Config, cfg.Events.BusName)
	geminiParam := lambdaboot.LoadGeminiKey(aws.SSM)
	perceptionParam := lambdaboot.LoadPerceptionKey(aws.SSM)

	genaiClient, err := generation.NewGeminiClient(context.Background(), os.Getenv("GEMINI_API_KEY"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}

	images := &imagestore.Router{S3: imagestore.NewS3Store(s3s.Client, s3s.Bucket)}
	perceiver := perception.NewPerceiver(
		perception.NewHTTPClient(cfg.Perception.BaseURL, os.Getenv("STUDIO_PERCEPTION_API_KEY"), cfg.Perception.Timeout),
		cfg.Pipeline.MinFaceConfidence,
	)
	generator := generation.NewGeminiGenerator(genaiClient, images, cfg.GeminiConfig())

	h = &handler{
		runner: pipeline.New(perceiver, generator, cfg.PipelineOptions()),
		images: images,
		bucket: s3s.Bucket,
		out:    os.Stdout,
	}
	if runs != nil {
		h.runs = runs
	}
	if publisher != nil {
		h.events = publisher
	}

	lambdaboot.StartupLog("studio-lambda", initStart).
		CommitHash(commitHash).
		S3Bucket("images", s3s.Bucket).
		DynamoTable("runs", cfg.Storage.Table).
		EventBus("events", cfg.Events.BusName).
		SSMParam("geminiApiKey", geminiParam).
		SSMParam("perceptionApiKey", perceptionParam).
		Endpoint("perception", cfg.Perception.BaseURL).
		Feature("runRecords", runs != nil).
		Feature("completionEvents", publisher != nil).
		Config("model", cfg.Generation.Model).
		Config("maxRetries", strconv.Itoa(cfg.Pipeline.MaxRetries)).
		Config("totalTimeout", cfg.Pipeline.TotalTimeout.String()).
		Log()
}

func main() {
	lambda.Start(h.handle)
}

package cli

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/portrait-studio/internal/generation"
)

// LoadDotEnv loads variables from the given .env files (default: ./.env)
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("Failed to load env file")
			continue
		}
		log.Debug().Str("file", f).Msg("Loaded env file")
	}
}

// InitGeminiClient creates a Gemini client from GEMINI_API_KEY, exiting
// fatally when the key is missing or the client cannot be built.
func InitGeminiClient(ctx context.Context) *genai.Client {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("No API key configured. Set GEMINI_API_KEY or add it to .env")
	}
	client, err := generation.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	log.Debug().Msg("Gemini client initialized")
	return client
}

package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fpang/portrait-studio/internal/conditioning"
	"github.com/fpang/portrait-studio/internal/imagestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ModelGemini3ProImage is the default image-editing model.
const ModelGemini3ProImage = "gemini-3-pro-image-preview"

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures GeminiGenerator.
type GeminiConfig struct {
	Model        string
	MaxDimension int
	// OutputPrefix is prepended to every output key, e.g. "outputs/".
	OutputPrefix string
}

// GeminiGenerator implements Service with Gemini image editing.
type GeminiGenerator struct {
	models contentGenerator
	images imagestore.Store
	cfg    GeminiConfig
}

var _ Service = (*GeminiGenerator)(nil)

// NewGeminiClient creates a genai client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiGenerator creates a generator that reads inputs from and writes
// outputs to images.
func NewGeminiGenerator(client *genai.Client, images imagestore.Store, cfg GeminiConfig) *GeminiGenerator {
	return newGeminiGenerator(client.Models, images, cfg)
}

func newGeminiGenerator(models contentGenerator, images imagestore.Store, cfg GeminiConfig) *GeminiGenerator {
	if cfg.Model == "" {
		cfg.Model = ModelGemini3ProImage
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	return &GeminiGenerator{models: models, images: images, cfg: cfg}
}

// Temperature maps a creativity level in [0,1] onto the model temperature.
func Temperature(creativity float64) float32 {
	creativity = max(0, min(1, creativity))
	return float32(0.1 + 0.9*creativity)
}

// Generate sends the input photo, reference images and structured prompt to
// Gemini and stores the returned image under <runID>/attempt-<n>.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid generation request: %w", err)
	}
	startTime := time.Now()

	input, err := g.images.Get(ctx, req.InputImageRef)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load input image: %w", err)
	}
	data, mimeType, err := Downscale(input.Data, input.MIMEType, g.cfg.MaxDimension)
	if err != nil {
		return Result{}, fmt.Errorf("failed to prepare input image: %w", err)
	}

	parts := []*genai.Part{{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}}}
	for _, ref := range req.Conditioning.ReferenceImages {
		obj, err := g.images.Get(ctx, ref)
		if err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("Skipping unreadable reference image")
			continue
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: obj.MIMEType, Data: obj.Data}})
	}
	parts = append(parts, &genai.Part{Text: buildInstruction(req, len(parts)-1)})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction(req)}},
		},
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Temperature:        genai.Ptr(Temperature(req.CreativityLevel)),
	}

	log.Info().
		Str("model", g.cfg.Model).
		Str("runId", req.RunID).
		Int("attempt", req.RetryAttempt).
		Int("image_bytes", len(data)).
		Int("parts", len(parts)).
		Str("mode", string(req.Mode)).
		Msg("Sending image to Gemini for editing")

	resp, err := g.models.GenerateContent(ctx, g.cfg.Model, []*genai.Content{{Role: "user", Parts: parts}}, config)
	if err != nil {
		return Result{}, fmt.Errorf("gemini image edit failed: %w", err)
	}

	var outData []byte
	var outMIME string
	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				outData = part.InlineData.Data
				outMIME = part.InlineData.MIMEType
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
		}
	}
	if outData == nil {
		return Result{}, fmt.Errorf("no image returned in response (text: %s)", truncateString(text.String(), 200))
	}
	if outMIME == "" {
		outMIME = imagestore.DetectMIME("", outData)
	}

	key := fmt.Sprintf("%s%s/attempt-%d%s", g.cfg.OutputPrefix, req.RunID, req.RetryAttempt, imagestore.ExtensionFor(outMIME))
	ref, err := g.images.Put(ctx, key, outData, outMIME)
	if err != nil {
		return Result{}, fmt.Errorf("failed to store generated image: %w", err)
	}

	log.Info().
		Str("runId", req.RunID).
		Int("attempt", req.RetryAttempt).
		Int("output_bytes", len(outData)).
		Str("output_ref", ref).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini image editing complete")

	return Result{OutputImageRef: ref, Model: g.cfg.Model, Notes: truncateString(text.String(), 500)}, nil
}

// buildInstruction renders the user-turn text: the structured prompt plus the
// weighted negative prompt. references is the number of reference images
// actually attached after the input photo.
func buildInstruction(req Request, references int) string {
	var sb strings.Builder
	sb.WriteString(req.Conditioning.StructuredPrompt)
	if neg := req.Conditioning.NegativePrompt(); neg != "" {
		sb.WriteString("\n\nAvoid: ")
		sb.WriteString(neg)
	}
	switch {
	case references == 1:
		sb.WriteString("\n\nThe first image is the photo to edit; the second image is a style reference only.")
	case references > 1:
		sb.WriteString("\n\nThe first image is the photo to edit; the following images are style references only.")
	}
	return sb.String()
}

func systemInstruction(req Request) string {
	var sb strings.Builder
	sb.WriteString("You are a professional portrait retoucher. Edit only the regions you are told to modify. ")
	sb.WriteString("The person's identity must remain unmistakable: never change face shape, facial features, ")
	sb.WriteString("skin tone, apparent age, or head pose.")
	fmt.Fprintf(&sb, " Identity preservation priority: %.2f of 1.00.", req.IdentityWeight)
	if req.Mode == conditioning.ModeInpaintOnly {
		sb.WriteString(" This is a localized repair: regenerate only the named areas and keep all other pixels identical.")
	}
	return sb.String()
}

// truncateString cuts s to at most maxLen bytes without splitting a rune.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}

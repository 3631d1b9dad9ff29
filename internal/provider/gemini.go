package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

// DefaultModels maps model variants to Gemini image model names
var DefaultModels = map[domain.Model]string{
	domain.ModelPro: "gemini-3-pro-image-preview",
	domain.ModelV2:  "gemini-2.5-flash-image",
}

// ErrNoImage is returned when the model answers without inline image data
var ErrNoImage = errors.New("no image data in response")

// contentGenerator is the part of genai.Models the adapter uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates images with the Gemini API
type Gemini struct {
	models     contentGenerator
	modelNames map[domain.Model]string
	logger     *slog.Logger
}

// NewGemini creates a Gemini API client. Entries in models override DefaultModels.
func NewGemini(ctx context.Context, apiKey string, models map[string]string, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newGemini(client.Models, models, logger), nil
}

func newGemini(models contentGenerator, overrides map[string]string, logger *slog.Logger) *Gemini {
	names := make(map[domain.Model]string, len(DefaultModels))
	for k, v := range DefaultModels {
		names[k] = v
	}
	for k, v := range overrides {
		if m, ok := domain.ParseModel(k); ok && v != "" {
			names[m] = v
		}
	}

	return &Gemini{
		models:     models,
		modelNames: names,
		logger:     logger,
	}
}

// Generate calls the model once. Every failure is returned as a *domain.ProviderError.
func (g *Gemini) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedImage, error) {
	modelName, ok := g.modelNames[req.Model]
	if !ok {
		return nil, domain.NewProviderError(fmt.Errorf("unsupported model %q", req.Model))
	}

	parts := make([]*genai.Part, 0, len(req.ReferenceImages)+1)
	for _, ref := range req.ReferenceImages {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIMEType))
	}
	if req.Prompt != "" {
		parts = append(parts, genai.NewPartFromText(req.Prompt))
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: req.AspectRatio,
			ImageSize:   req.ImageSize,
		},
	}

	start := time.Now()
	g.logger.Debug("Calling Gemini API",
		slog.String("model", modelName),
		slog.Int("prompt_length", len(req.Prompt)),
		slog.Int("reference_images", len(req.ReferenceImages)),
		slog.String("aspect_ratio", req.AspectRatio),
		slog.String("image_size", req.ImageSize),
	)

	result, err := g.models.GenerateContent(ctx, modelName, []*genai.Content{{Role: string(genai.RoleUser), Parts: parts}}, config)
	if err != nil {
		return nil, domain.NewProviderError(err)
	}

	image, err := firstImage(result)
	if err != nil {
		return nil, domain.NewProviderError(err)
	}

	g.logger.Info("Received image from Gemini",
		slog.String("model", modelName),
		slog.Int("bytes", len(image.Data)),
		slog.String("mime_type", image.MIMEType),
		slog.Duration("latency", time.Since(start)),
	)

	return image, nil
}

func firstImage(result *genai.GenerateContentResponse) (*domain.GeneratedImage, error) {
	if result == nil || len(result.Candidates) == 0 {
		if result != nil && result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("prompt blocked: %s", result.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("no candidates in response")
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = mimetype.Detect(part.InlineData.Data).String()
			}
			return &domain.GeneratedImage{Data: part.InlineData.Data, MIMEType: mimeType}, nil
		}
	}

	return nil, ErrNoImage
}

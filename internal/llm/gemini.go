package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModels are tried in order until one answers.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client *genai.Client
	models []string
}

// NewGemini builds a client for apiKey. model, when set, is tried first.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	models := DefaultModels
	if model != "" {
		models = append([]string{model}, without(DefaultModels, model)...)
	}
	return &Gemini{client: client, models: models}, nil
}

func without(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

// Complete moves to the next model on quota or not-found errors.
func (g *Gemini) Complete(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}
	var lastErr error
	for _, name := range g.models {
		result, err := g.client.Models.GenerateContent(ctx, name, genai.Text(prompt), cfg)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "404") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return "", err
		}
		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
		lastErr = ErrEmptyReply
	}
	return "", fmt.Errorf("gemini: all models failed: %w", lastErr)
}

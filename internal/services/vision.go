package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// PlaceholderTitle and PlaceholderDescription mark a missing AI result.
	PlaceholderTitle       = "AI generated title"
	PlaceholderDescription = "AI generated description"

	titleMarker       = "Title:"
	descriptionMarker = "Description:"
)

const visionPrompt = "Analyse this picture in detail and describe it so the text can be used for vector " +
	"embedding and text-based image search. Cover the main subject, scene and setting, colours, " +
	"composition, style, mood and notable details. Give a short, punchy title first and then the " +
	"detailed description. Reply strictly in the following format without any other text:\n" +
	titleMarker + " [a short summary of the picture]\n" +
	descriptionMarker + " [a thorough description using rich, precise vocabulary]"

// VisionDescriber produces a title and description for an image.
type VisionDescriber interface {
	Describe(ctx context.Context, image []byte, contentType string) (title, description string, err error)
}

// OpenAIVision sends the image as a base64 data URL to an OpenAI-compatible
// /chat/completions endpoint hosting a vision-language model.
type OpenAIVision struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewOpenAIVision(baseURL, apiKey, model string, timeout time.Duration) *OpenAIVision {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIVision{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (v *OpenAIVision) Describe(ctx context.Context, image []byte, contentType string) (string, string, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)

	reqBody := visionRequest{
		Model: v.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContent{
				{Type: "image_url", ImageURL: &visionImageURL{URL: dataURL}},
				{Type: "text", Text: visionPrompt},
			},
		}},
		MaxTokens:   800,
		Temperature: 0.5,
		TopP:        0.8,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", decodeAPIError("vision", resp)
	}

	var chatResp visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", "", fmt.Errorf("vision decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", "", fmt.Errorf("empty response from vision api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", "", fmt.Errorf("empty response from vision api")
	}

	title, description := ParseDescription(text)
	return title, description, nil
}

// ParseDescription splits a model reply on the Title:/Description: markers.
// Missing parts come back as the placeholders; a reply with neither marker
// becomes the description.
func ParseDescription(text string) (title, description string) {
	title, description = PlaceholderTitle, PlaceholderDescription

	ti := strings.Index(text, titleMarker)
	di := strings.Index(text, descriptionMarker)

	switch {
	case ti >= 0 && di > ti:
		title = strings.TrimSpace(text[ti+len(titleMarker) : di])
		description = strings.TrimSpace(text[di+len(descriptionMarker):])
	case ti >= 0:
		title = strings.TrimSpace(text[ti+len(titleMarker):])
	case di >= 0:
		description = strings.TrimSpace(text[di+len(descriptionMarker):])
	default:
		description = strings.TrimSpace(text)
	}
	return title, description
}

type visionRequest struct {
	Model       string          `json:"model"`
	Messages    []visionMessage `json:"messages"`
	Stream      bool            `json:"stream"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL string `json:"url"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sashabaranov/go-openai"
)

const maxImageSide = 1024

// ImageAnalysis is what the vision model extracted from a customer
// photo.
type ImageAnalysis struct {
	IsPlant     bool    `json:"is_plant"`
	PlantName   string  `json:"plant_name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

const visionSystemPrompt = "Ты - опытный флорист-консультант магазина TropicHouse. " +
	"Твоя задача - помочь определить растение на фото и дать полезные рекомендации. " +
	"Используй дружелюбный, профессиональный тон. Отвечай как живой консультант, " +
	"но строго в формате JSON."

const visionUserPrompt = "Представь, что ты опытный флорист-консультант. " +
	"Посмотри на фотографию и опиши, что ты видишь. " +
	"Если это растение, определи его тип и особенности. " +
	"Если это не растение, просто опиши, что видишь на фото. " +
	"Если на фото предположительно большое растение, добавь это в description. " +
	"Ответ должен быть в формате JSON с полями:\n" +
	"- is_plant (bool): true если на фото растение\n" +
	"- plant_name (string): название растения или null\n" +
	"- description (string): дружелюбное описание того, что видно на фото\n" +
	"- confidence (float): уверенность в определении от 0 до 1\n"

// FetchImage downloads a customer photo from the gateway-hosted URL.
func (a *Agent) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	return data, nil
}

// encodeForVision shrinks the photo to maxImageSide and re-encodes it as
// a base64 JPEG data URL.
func encodeForVision(imageData []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxImageSide || bounds.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
		log.Info("Image resized to %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// stripCodeFence removes the ```json fences models like to wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// AnalyzeImage runs a customer photo through the vision model. It never
// returns an error: any failure degrades to a "could not analyze"
// result so the dialog can continue.
func (a *Agent) AnalyzeImage(ctx context.Context, imageData []byte) ImageAnalysis {
	failed := ImageAnalysis{
		Description: "К сожалению, не удалось проанализировать фотографию",
	}

	dataURL, err := encodeForVision(imageData)
	if err != nil {
		log.Error("Image preparation failed: %v", err)
		return failed
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.visionModel,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: visionSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionUserPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		log.Error("Vision model call failed: %v", err)
		return failed
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Debug("Vision model answered: %s", raw)

	var result ImageAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &result); err != nil {
		log.Error("Vision answer is not JSON: %v", err)
		// Fall back to a text heuristic so the photo still gets an answer.
		isPlant := strings.Contains(strings.ToLower(raw), "растение")
		result = ImageAnalysis{IsPlant: isPlant, Description: truncate(raw, 200)}
		if isPlant {
			result.PlantName = "Неизвестное растение"
			result.Confidence = 0.3
		}
		return result
	}

	if result.IsPlant && result.PlantName == "" {
		result.PlantName = "Неизвестное растение"
	}
	if result.Description == "" {
		result.Description = "Нет описания"
	}
	return result
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

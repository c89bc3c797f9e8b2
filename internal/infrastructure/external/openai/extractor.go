package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
)

// Config holds extractor settings
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration // zero means no client-side timeout
}

// Extractor implements port.InvoiceExtractor with a vision-capable chat model
type Extractor struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	pages   port.ThumbnailRenderer
	logger  *zap.Logger
}

// NewExtractor creates a new extractor. pages turns PDFs into a JPEG the
// model can read.
func NewExtractor(cfg Config, prompts *PromptConfig, pages port.ThumbnailRenderer, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Extractor{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		prompts: prompts,
		pages:   pages,
		logger:  logger,
	}
}

// Extract reads invoice fields from an image or PDF
func (e *Extractor) Extract(ctx context.Context, file *entity.AttachmentFile) (*port.ExtractedFields, error) {
	imageData, mimeType, err := e.imageOf(file)
	if err != nil {
		return nil, err
	}

	prompt, err := renderTemplate(e.prompts.InvoiceExtraction.UserTemplate, map[string]interface{}{
		"Categories": []entity.Category{
			entity.CategoryMaterials,
			entity.CategoryLabor,
			entity.CategoryEquipment,
			entity.CategoryPermit,
			entity.CategoryOther,
		},
		"Currency": entity.SupportedCurrency,
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Extracting invoice fields with vision model",
		zap.String("file_name", file.FileName),
		zap.String("mime_type", mimeType))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		MaxTokens:   e.prompts.InvoiceExtraction.MaxTokens,
		Temperature: e.prompts.InvoiceExtraction.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: e.prompts.InvoiceExtraction.System,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData)),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("Vision API call failed", zap.Error(err))
		return nil, fmt.Errorf("vision API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from vision API")
	}

	content := resp.Choices[0].Message.Content
	var fields port.ExtractedFields
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		jsonStr := extractJSON(content)
		if jsonStr == "" || json.Unmarshal([]byte(jsonStr), &fields) != nil {
			e.logger.Error("Failed to parse vision API response",
				zap.Error(err),
				zap.String("content", content))
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	normalize(&fields)
	e.logger.Info("Invoice fields extracted",
		zap.String("vendor", fields.VendorName),
		zap.String("amount", fields.Amount),
		zap.String("issue_date", fields.IssueDate))

	return &fields, nil
}

func (e *Extractor) imageOf(file *entity.AttachmentFile) ([]byte, string, error) {
	if file == nil || len(file.Content) == 0 {
		return nil, "", fmt.Errorf("empty attachment")
	}
	switch {
	case file.IsPDF():
		if e.pages == nil {
			return nil, "", fmt.Errorf("no PDF renderer configured")
		}
		page, err := e.pages.Render(file)
		if err != nil {
			return nil, "", fmt.Errorf("render PDF page: %w", err)
		}
		return page, "image/jpeg", nil
	case strings.HasPrefix(file.MimeType, "image/"):
		return file.Content, file.MimeType, nil
	default:
		return nil, "", fmt.Errorf("cannot extract fields from %s", file.MimeType)
	}
}

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

func normalize(f *port.ExtractedFields) {
	f.VendorName = strings.TrimSpace(f.VendorName)
	f.InvoiceNumber = strings.TrimSpace(f.InvoiceNumber)
	f.Amount = nonNumeric.ReplaceAllString(f.Amount, "")
	f.TaxAmount = nonNumeric.ReplaceAllString(f.TaxAmount, "")
	f.IssueDate = strings.TrimSpace(f.IssueDate)
	f.DueDate = strings.TrimSpace(f.DueDate)
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
}

// extractJSON returns the outermost {...} span of content, for replies
// wrapped in prose or markdown fences
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

var _ port.InvoiceExtractor = (*Extractor)(nil)

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gruasmx/dispatch-bot/internal/domain"
)

// ErrExtractorUnavailable marks an extractor without an API key. Callers
// should tell the operator instead of retrying.
var ErrExtractorUnavailable = errors.New("ai extractor not configured")

const systemPrompt = `Eres un asistente especializado en extraer datos específicos de textos sobre servicios de grúas y vehículos.

Extrae SOLAMENTE los siguientes datos y entrégalos en formato JSON:
1. El número de expediente (6 dígitos que empiezan con 9, suele estar junto a la palabra GRUAS)
2. Los datos del vehículo como un único string en formato: "[Marca] [Modelo] [Año] [Color]"
3. Las placas (si están disponibles)
4. El nombre completo del cliente o usuario (prioriza el campo "Cliente" sobre "quién recibe")
5. Entre calles (si están disponibles)
6. Referencia (si está disponible)

IMPORTANTE:
- El campo cuenta siempre es "CHUBB" cuando hay un expediente
- Ignora términos que no son placas reales como "TROYA03", "CRK", "4X2", "PAZ", "REYES", etc.
- No incluyas las coordenadas en tu respuesta
- Si un dato no está disponible en el texto, incluye el campo con valor null
- IMPORTANTE: Todos los campos deben ser strings, no arrays.
- Tu respuesta debe ser SOLAMENTE un objeto JSON válido con los campos: expediente, vehiculo, placas, usuario, cuenta, entreCalles, referencia`

type ExtractorConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Extractor turns raw service text into structured fields via the OpenAI
// chat completions API.
type Extractor struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewExtractor(config ExtractorConfig) *Extractor {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = "gpt-3.5-turbo"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Extractor{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		model:      config.Model,
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
	}
}

func (e *Extractor) Available() bool {
	return e.apiKey != ""
}

// Extract asks the model for the seven service fields. Transient provider
// failures (429, 5xx) are retried with a growing backoff.
func (e *Extractor) Extract(ctx context.Context, text string) (domain.ExtractedService, error) {
	if !e.Available() {
		return domain.ExtractedService{}, ErrExtractorUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return domain.ExtractedService{}, errors.New("text is required")
	}

	payload := map[string]any{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{
				"role":    "user",
				"content": "Analiza el siguiente texto y extrae la información solicitada en formato JSON, asegurándote de que todos los campos sean strings, no arrays:\n\n" + text,
			},
		},
		"temperature": 0.2,
		"max_tokens":  500,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return domain.ExtractedService{}, fmt.Errorf("marshal extraction payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		extracted, callErr := e.callChatCompletionsAPI(ctx, encoded)
		if callErr == nil {
			return extracted, nil
		}
		lastErr = callErr

		if !isRetryableProviderError(callErr) || attempt == e.maxRetries {
			break
		}

		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return domain.ExtractedService{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	if lastErr == nil {
		lastErr = errors.New("unknown extraction error")
	}
	return domain.ExtractedService{}, lastErr
}

func (e *Extractor) callChatCompletionsAPI(ctx context.Context, payload []byte) (domain.ExtractedService, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		e.baseURL+"/chat/completions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return domain.ExtractedService{}, fmt.Errorf("create extraction request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+e.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := e.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return domain.ExtractedService{}, fmt.Errorf("extraction timeout: %w", err)
		}
		return domain.ExtractedService{}, fmt.Errorf("extraction transport error: %w", err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return domain.ExtractedService{}, fmt.Errorf("read extraction body: %w", err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > 700 {
			message = message[:700]
		}
		return domain.ExtractedService{}, &providerHTTPError{
			StatusCode: httpResponse.StatusCode,
			Message:    message,
		}
	}

	var raw chatCompletionsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.ExtractedService{}, fmt.Errorf("decode extraction response: %w", err)
	}
	if len(raw.Choices) == 0 {
		return domain.ExtractedService{}, errors.New("extraction response without choices")
	}

	return parseModelOutput(raw.Choices[0].Message.Content)
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type extractedFields struct {
	Expediente  string `json:"expediente"`
	Vehiculo    string `json:"vehiculo"`
	Placas      string `json:"placas"`
	Usuario     string `json:"usuario"`
	Cuenta      string `json:"cuenta"`
	EntreCalles string `json:"entreCalles"`
	Referencia  string `json:"referencia"`
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseModelOutput tolerates prose around the JSON object: only the first
// balanced-looking {...} span is decoded.
func parseModelOutput(content string) (domain.ExtractedService, error) {
	jsonStr := content
	if match := jsonObjectPattern.FindString(content); match != "" {
		jsonStr = match
	}

	var fields extractedFields
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		return domain.ExtractedService{}, fmt.Errorf("parse extracted fields: %w", err)
	}

	extracted := domain.ExtractedService{
		Expediente:  strings.TrimSpace(fields.Expediente),
		Vehiculo:    strings.TrimSpace(fields.Vehiculo),
		Placas:      strings.TrimSpace(fields.Placas),
		Cliente:     strings.TrimSpace(fields.Usuario),
		Cuenta:      strings.TrimSpace(fields.Cuenta),
		EntreCalles: strings.TrimSpace(fields.EntreCalles),
		Referencia:  strings.TrimSpace(fields.Referencia),
	}
	if strings.HasPrefix(extracted.Expediente, "9") {
		extracted.Cuenta = "CHUBB"
	}
	return extracted, nil
}

type providerHTTPError struct {
	StatusCode int
	Message    string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("openai status %d: %s", e.StatusCode, e.Message)
}

func isRetryableProviderError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}

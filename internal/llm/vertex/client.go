package vertex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"scribe-backend/internal/llm"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Client implements llm.Client using the Vertex AI Gemini generateContent API.
type Client struct {
	project    string
	location   string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a Vertex AI client. Credentials are resolved via
// Application Default Credentials.
func NewClient(ctx context.Context, project, location, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(project) == "" {
		return nil, fmt.Errorf("VERTEX_PROJECT_ID is required")
	}
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("VERTEX_LOCATION is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("VERTEX_MODEL is required")
	}
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("vertex token source: %w", err)
	}

	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = timeout

	return &Client{
		project:    project,
		location:   location,
		model:      model,
		baseURL:    fmt.Sprintf("https://%s-aiplatform.googleapis.com", location),
		httpClient: httpClient,
	}, nil
}

type filePayload struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type inlinePayload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type contentPart struct {
	Text       string         `json:"text,omitempty"`
	FileData   *filePayload   `json:"fileData,omitempty"`
	InlineData *inlinePayload `json:"inlineData,omitempty"`
}

type content struct {
	Role  string        `json:"role"`
	Parts []contentPart `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"topP"`
	TopK            int     `json:"topK"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate sends one generateContent request and returns the model text.
func (c *Client) Generate(ctx context.Context, input llm.GenerateInput) (string, error) {
	parts := make([]contentPart, 0, len(input.Files)+1)
	for _, f := range input.Files {
		switch {
		case f.URI != "":
			parts = append(parts, contentPart{FileData: &filePayload{
				MimeType: f.MimeType,
				FileURI:  f.URI,
			}})
		case len(f.Data) > 0:
			parts = append(parts, contentPart{InlineData: &inlinePayload{
				MimeType: f.MimeType,
				Data:     base64.StdEncoding.EncodeToString(f.Data),
			}})
		}
	}
	parts = append(parts, contentPart{Text: input.Prompt})

	reqBody := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			MaxOutputTokens: 16384,
			Temperature:     0.2,
			TopP:            0.95,
			TopK:            40,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("vertex marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		c.baseURL, c.project, c.location, c.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("vertex build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vertex request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return "", fmt.Errorf("vertex read response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("vertex decode response http status %d: %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("vertex error http status %d: %s: %s", resp.StatusCode, parsed.Error.Status, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vertex http status %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("vertex empty candidates")
	}

	var out strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("vertex empty model response")
	}
	return out.String(), nil
}

var _ llm.Client = (*Client)(nil)

package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"
	// Bounded request timeout so a hung provider call never stalls a
	// dispatch loop indefinitely.
	defaultSendTimeout = 30 * time.Second
)

type textPayload struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type sendMessageRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
}

type sendMessageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// WhatsAppClient sends messages through the Meta Graph API.
type WhatsAppClient struct {
	client      *resty.Client
	baseURL     string
	apiVersion  string
	accessToken string
}

func NewWhatsAppClient(baseURL, apiVersion, accessToken string) (*WhatsAppClient, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewWhatsAppClientWithClient(baseURL, apiVersion, accessToken, client)
}

func NewWhatsAppClientWithClient(baseURL, apiVersion, accessToken string, client *resty.Client) (*WhatsAppClient, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		trimmedBase = defaultBaseURL
	}
	trimmedVersion := strings.TrimSpace(apiVersion)
	if trimmedVersion == "" {
		trimmedVersion = defaultAPIVersion
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &WhatsAppClient{
		client:      client,
		baseURL:     trimmedBase,
		apiVersion:  trimmedVersion,
		accessToken: strings.TrimSpace(accessToken),
	}, nil
}

// SendText sends a free-text message. Free text only reaches contacts inside
// the provider's 24h customer-service window; outside it the provider
// rejects the call and the error is surfaced as a ProviderError.
func (c *WhatsAppClient) SendText(ctx context.Context, to string, body string, phoneNumberID string) (string, error) {
	req := sendMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text: &textPayload{
			PreviewURL: false,
			Body:       body,
		},
	}

	return c.send(ctx, phoneNumberID, req)
}

// SendTemplate sends a pre-approved template message. bodyParams fill the
// template's positional placeholders in order; when empty, no body component
// is attached.
func (c *WhatsAppClient) SendTemplate(ctx context.Context, to string, phoneNumberID string, templateName string, languageCode string, bodyParams []string) (string, error) {
	tmpl := &templatePayload{
		Name:     templateName,
		Language: templateLanguage{Code: languageCode},
	}

	if len(bodyParams) > 0 {
		params := make([]templateParameter, 0, len(bodyParams))
		for _, p := range bodyParams {
			params = append(params, templateParameter{Type: "text", Text: p})
		}
		tmpl.Components = []templateComponent{{Type: "body", Parameters: params}}
	}

	req := sendMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template:         tmpl,
	}

	return c.send(ctx, phoneNumberID, req)
}

func (c *WhatsAppClient) send(ctx context.Context, phoneNumberID string, body sendMessageRequest) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("provider is not initialized")
	}
	if c.accessToken == "" {
		return "", &ProviderError{
			Message: "access token is missing",
			Cause:   ErrNotConfigured,
		}
	}
	if strings.TrimSpace(phoneNumberID) == "" {
		return "", &ProviderError{Message: "phone number id is required"}
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, phoneNumberID)

	var parsed sendMessageResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.accessToken).
		SetBody(body).
		SetResult(&parsed).
		Post(url)
	if err != nil {
		return "", &ProviderError{
			Message: "provider request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return "", &ProviderError{Message: "provider returned empty response"}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", &ProviderError{
			StatusCode: statusCode,
			Message:    providerErrorMessage(statusCode, strings.TrimSpace(response.String())),
		}
	}

	if len(parsed.Messages) > 0 {
		return parsed.Messages[0].ID, nil
	}

	// The provider accepted the send but returned no message id; tolerated.
	return "", nil
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

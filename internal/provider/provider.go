package provider

import "context"

// Sender is the outbound WhatsApp delivery port. Both calls return the
// provider-assigned message id on success.
type Sender interface {
	SendText(ctx context.Context, to string, body string, phoneNumberID string) (string, error)
	SendTemplate(ctx context.Context, to string, phoneNumberID string, templateName string, languageCode string, bodyParams []string) (string, error)
}

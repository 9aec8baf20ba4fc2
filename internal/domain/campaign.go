package domain

import (
	"fmt"
	"strings"
	"time"
)

// CampaignStatus represents the lifecycle state of a campaign.
// Transitions are linear: pending -> running -> finished. There is no
// campaign-level failed state; failure is tracked per item.
type CampaignStatus string

const (
	CampaignStatusPending  CampaignStatus = "PENDING"
	CampaignStatusRunning  CampaignStatus = "RUNNING"
	CampaignStatusFinished CampaignStatus = "FINISHED"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusPending, CampaignStatusRunning, CampaignStatusFinished:
		return true
	}
	return false
}

func ParseCampaignStatusFromString(s string) (CampaignStatus, error) {
	st := CampaignStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid campaign status %q", ErrValidation, s)
	}
	return st, nil
}

// ItemStatus represents the terminal one-shot state of a campaign item.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "PENDING"
	ItemStatusSent    ItemStatus = "SENT"
	ItemStatusFailed  ItemStatus = "FAILED"
)

func (s ItemStatus) String() string { return string(s) }

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusSent, ItemStatusFailed:
		return true
	}
	return false
}

// DefaultTemplateLanguage is used when a template campaign does not set one.
const DefaultTemplateLanguage = "pt_BR"

// Campaign is a bulk-send job addressed to many recipients with a single
// payload: either a pre-approved template or free text, never both.
type Campaign struct {
	ID                   string
	OwnerID              string
	Name                 string
	PhoneNumberID        string
	TemplateName         *string
	TemplateLanguageCode *string
	TemplateBodyParams   []string
	MessageText          *string
	Total                int
	Sent                 int
	Failed               int
	Status               CampaignStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate enforces the creation invariants, template/text exclusivity in
// particular. It never mutates the campaign.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(c.PhoneNumberID) == "" {
		return fmt.Errorf("%w: phone number id is required", ErrValidation)
	}

	hasTemplate := c.TemplateName != nil && strings.TrimSpace(*c.TemplateName) != ""
	hasText := c.MessageText != nil && strings.TrimSpace(*c.MessageText) != ""

	if !hasTemplate && !hasText {
		return fmt.Errorf("%w: either template name or message text is required", ErrValidation)
	}
	if hasTemplate && hasText {
		return fmt.Errorf("%w: template name and message text are mutually exclusive", ErrValidation)
	}

	return nil
}

// IsTemplate reports whether the campaign sends a templated message. The
// send path is decided once per campaign, not per item.
func (c *Campaign) IsTemplate() bool {
	return c.TemplateName != nil && strings.TrimSpace(*c.TemplateName) != ""
}

// TemplateLanguage returns the template language code, falling back to the
// default when unset.
func (c *Campaign) TemplateLanguage() string {
	if c.TemplateLanguageCode != nil && strings.TrimSpace(*c.TemplateLanguageCode) != "" {
		return strings.TrimSpace(*c.TemplateLanguageCode)
	}
	return DefaultTemplateLanguage
}

// CampaignItem is one recipient's send attempt within a campaign. Items are
// created pending and mutated exactly once by the dispatcher.
type CampaignItem struct {
	ID                string
	CampaignID        string
	Recipient         string
	Status            ItemStatus
	ErrorMessage      *string
	ProviderMessageID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

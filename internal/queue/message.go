package queue

import (
	"fmt"
	"strings"
)

// CampaignMessage is the broker payload scheduling one campaign dispatch.
type CampaignMessage struct {
	CampaignID string `json:"campaignId"`
	OwnerID    string `json:"ownerId,omitempty"`
}

func (m CampaignMessage) Validate() error {
	if strings.TrimSpace(m.CampaignID) == "" {
		return fmt.Errorf("campaignId is required")
	}
	return nil
}

package models

// OutboundMessage is the payload handed to the messaging gateway for
// delivery on a channel.
type OutboundMessage struct {
	TenantID   string         `json:"tenantId"`
	SubjectID  string         `json:"subjectId,omitempty"`
	Recipient  string         `json:"recipient,omitempty"`
	TemplateID string         `json:"templateId,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Body       string         `json:"body,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

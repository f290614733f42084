package domain

import "time"

// AuditFields holds standard audit information for domain entities.
type AuditFields struct {
	CreatedAt     time.Time `json:"createdAt"`
	CreatedBy     string    `json:"createdBy"` // principal that created the entity
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, returning "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

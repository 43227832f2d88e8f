package dto

// ScanCompleted is published on the scans exchange after a scanner persisted
// one entity.
type ScanCompleted struct {
	EventID    string `json:"event_id"`
	EntityType string `json:"entity_type"`
	DomainID   uint64 `json:"domain_id"`
	Domain     string `json:"domain"`
	CheckedAt  string `json:"checked_at"`
	TraceID    string `json:"trace_id,omitempty"`
}

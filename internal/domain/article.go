package domain

// Fallbacks used when a page carries no usable metadata.
const (
	DefaultTitle  = "Article"
	DefaultAuthor = "Unknown"
)

// Article is the readable content extracted from one web page.
// Body holds plain-text paragraphs separated by a blank line.
type Article struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	SourceURL string `json:"source_url"`
	SiteName  string `json:"site_name,omitempty"`
}

// DeliveryOutcome is the result of one upload attempt to the tablet.
type DeliveryOutcome struct {
	Succeeded  bool
	Diagnostic string // stderr or invocation error when Succeeded is false
}

// Err returns nil on success, otherwise an error wrapping ErrDelivery.
func (o DeliveryOutcome) Err() error {
	if o.Succeeded {
		return nil
	}
	if o.Diagnostic == "" {
		return ErrDelivery
	}
	return &kindError{kind: ErrDelivery, msg: o.Diagnostic}
}

// SyncState classifies the result of a connectivity check against the sync tool.
type SyncState string

const (
	SyncOperational SyncState = "operational"
	SyncDegraded    SyncState = "degraded"
	SyncError       SyncState = "error"
)

// SyncStatus is reported by the /status command.
type SyncStatus struct {
	State      SyncState
	Diagnostic string
}

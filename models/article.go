package models

import "time"

// Processing states for an Article. A record is born pending and is moved to
// processed exactly once, by the analysis reviewer, never by the crawler.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
)

// ListingItem is one row of the paginated announcement index: the publication
// date as rendered, the headline, and the absolute detail-page URL. The URL is
// the dedup key; everything else is display text.
type ListingItem struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Article is the persisted unit: one announcement with its body text and the
// text recovered from any document attachments.
type Article struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	CompanyName     string    `json:"company_name,omitempty"`
	PublicationDate string    `json:"publication_date,omitempty"`
	ScrapedAt       time.Time `json:"scraped_at"`
	BodyText        string    `json:"article_text,omitempty"`
	AttachmentsText string    `json:"attachments_text,omitempty"`
	Language        string    `json:"language,omitempty"` // ISO 639-1, lowercase
	Status          string    `json:"processing_status"`
	Analysis        *Analysis `json:"analysis,omitempty"`
}

// Analysis is the reviewer's verdict written back once a pending record has
// been assessed.
type Analysis struct {
	Evaluation   string  `json:"evaluation"`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence"`
	FullResponse string  `json:"full_response,omitempty"`
}

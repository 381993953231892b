package models

import "time"

// ExamPaper is the scanned document under discussion. DocumentURL is the
// publicly resolvable source used by the mobile rendering fallbacks;
// PageImageURLs are the pre-rendered pages used by full-paper fallback mode.
type ExamPaper struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	DocumentURL   string    `json:"document_url"`
	PageImageURLs []string  `json:"page_image_urls"`
	CreatedAt     time.Time `json:"created_at"`
}

package models

// QuestionRecord is one row of the question asset store, keyed by
// (exam paper, question number). Image URLs are fetched independently.
type QuestionRecord struct {
	ExamPaperID       int64    `json:"exam_paper_id"`
	QuestionNumber    string   `json:"question_number"`
	OCRText           string   `json:"ocr_text"`
	ImageURL          string   `json:"image_url"`
	ImageURLs         []string `json:"image_urls"`
	MarkingSchemeText string   `json:"marking_scheme_text"`
}

// QuestionAsset is the session-cached, inline-transmissible form of a
// question: every image already fetched and encoded. Immutable once built.
type QuestionAsset struct {
	QuestionNumber    string   `json:"question_number"`
	Images            []string `json:"images"`
	MarkingSchemeText string   `json:"marking_scheme_text"`
	QuestionText      string   `json:"question_text"`
}

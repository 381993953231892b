package assets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/models"
)

// ErrQuestionNotFound reports a question number with no record for the paper.
// Not an error condition for callers: it triggers full-paper fallback mode.
var ErrQuestionNotFound = errors.New("question not found")

// QuestionSource is the queryable asset store keyed by (paper, question).
type QuestionSource interface {
	LookupQuestion(ctx context.Context, paperID int64, questionNumber string) (*models.QuestionRecord, error)
	PaperPageURLs(ctx context.Context, paperID int64) ([]string, error)
}

// Store reads exam papers and question records from the database.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// LookupQuestion returns the question record or ErrQuestionNotFound.
func (s *Store) LookupQuestion(ctx context.Context, paperID int64, questionNumber string) (*models.QuestionRecord, error) {
	var (
		rec     models.QuestionRecord
		rawURLs string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT exam_paper_id, question_number, ocr_text, image_url, image_urls, marking_scheme_text
		 FROM questions WHERE exam_paper_id = ? AND question_number = ?`,
		paperID, questionNumber,
	).Scan(&rec.ExamPaperID, &rec.QuestionNumber, &rec.OCRText, &rec.ImageURL, &rawURLs, &rec.MarkingSchemeText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("lookup question: %w", err)
	}
	if rawURLs != "" {
		if err := json.Unmarshal([]byte(rawURLs), &rec.ImageURLs); err != nil {
			return nil, fmt.Errorf("decode image urls: %w", err)
		}
	}
	return &rec, nil
}

// GetPaper returns the exam paper record.
func (s *Store) GetPaper(ctx context.Context, paperID int64) (*models.ExamPaper, error) {
	var (
		paper    models.ExamPaper
		rawPages string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, document_url, page_image_urls, created_at FROM exam_papers WHERE id = ?`,
		paperID,
	).Scan(&paper.ID, &paper.Title, &paper.DocumentURL, &rawPages, &paper.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get exam paper: %w", err)
	}
	if rawPages != "" {
		if err := json.Unmarshal([]byte(rawPages), &paper.PageImageURLs); err != nil {
			return nil, fmt.Errorf("decode page image urls: %w", err)
		}
	}
	return &paper, nil
}

// PaperPageURLs returns the pre-rendered page image URLs for a paper.
func (s *Store) PaperPageURLs(ctx context.Context, paperID int64) ([]string, error) {
	paper, err := s.GetPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	return paper.PageImageURLs, nil
}

package assets

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/models"
)

// Cache memoizes per-question assets for one viewer session. Entries are
// immutable once stored and are never evicted: a paper has a bounded question
// count, so the map stays small for the life of the session. A question is
// fetched across the network at most once per session no matter how many
// times it is discussed.
type Cache struct {
	paperID int64
	source  QuestionSource
	fetcher ImageFetcher

	mu          sync.Mutex
	assets      map[string]*models.QuestionAsset
	pages       []string
	pagesLoaded bool
}

func NewCache(paperID int64, source QuestionSource, fetcher ImageFetcher) *Cache {
	return &Cache{
		paperID: paperID,
		source:  source,
		fetcher: fetcher,
		assets:  make(map[string]*models.QuestionAsset),
	}
}

// Get returns the asset for a question number, fetching and encoding its
// images on first use. A missing question record returns ErrQuestionNotFound
// and is not cached. A failure on a single image is logged and that image
// skipped; the asset is still produced and cached from the rest.
func (c *Cache) Get(ctx context.Context, questionNumber string) (*models.QuestionAsset, error) {
	c.mu.Lock()
	if asset, ok := c.assets[questionNumber]; ok {
		c.mu.Unlock()
		return asset, nil
	}
	c.mu.Unlock()

	rec, err := c.source.LookupQuestion(ctx, c.paperID, questionNumber)
	if err != nil {
		return nil, err
	}

	urls := rec.ImageURLs
	if len(urls) == 0 && rec.ImageURL != "" {
		urls = []string{rec.ImageURL}
	}
	images := c.fetchAll(ctx, urls)

	asset := &models.QuestionAsset{
		QuestionNumber:    rec.QuestionNumber,
		Images:            images,
		MarkingSchemeText: rec.MarkingSchemeText,
		QuestionText:      rec.OCRText,
	}

	c.mu.Lock()
	if existing, ok := c.assets[questionNumber]; ok {
		asset = existing
	} else {
		c.assets[questionNumber] = asset
	}
	c.mu.Unlock()
	return asset, nil
}

// PaperPages returns the paper's pre-rendered page images for full-paper
// fallback mode, fetched and memoized once per session.
func (c *Cache) PaperPages(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	if c.pagesLoaded {
		pages := c.pages
		c.mu.Unlock()
		return pages, nil
	}
	c.mu.Unlock()

	urls, err := c.source.PaperPageURLs(ctx, c.paperID)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.New("paper has no pre-rendered pages")
	}
	pages := c.fetchAll(ctx, urls)

	c.mu.Lock()
	if !c.pagesLoaded {
		c.pages = pages
		c.pagesLoaded = true
	}
	pages = c.pages
	c.mu.Unlock()
	return pages, nil
}

func (c *Cache) fetchAll(ctx context.Context, urls []string) []string {
	images := make([]string, 0, len(urls))
	for _, u := range urls {
		encoded, err := c.fetcher.FetchImage(ctx, u)
		if err != nil {
			log.Printf("skip image %s: %v", u, err)
			continue
		}
		images = append(images, encoded)
	}
	return images
}

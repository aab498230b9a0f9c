// Package indexer rebuilds the search index of one project from its source.
package indexer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"index-coordinator/internal/errs"
	"index-coordinator/internal/repository"
	"index-coordinator/internal/source"
	"index-coordinator/internal/store"
	"index-coordinator/internal/utils"
	"index-coordinator/pkg/logger"
)

// PropertyLastIndexUpdateEndDate records when the last successful run of a project began
// fetching, so the next run only asks for records updated since then.
const PropertyLastIndexUpdateEndDate = "last_index_update_end_date"

// Indexer indexes a single project.
type Indexer interface {
	IndexProject(ctx context.Context, projectKey string) error
}

// ProjectIndexer pulls changed records page by page and writes them to the index store.
type ProjectIndexer struct {
	source     source.Source
	indexStore store.IndexStore
	properties repository.PropertyStore
	logger     logger.Logger
	now        func() time.Time
}

func NewProjectIndexer(src source.Source, indexStore store.IndexStore, properties repository.PropertyStore,
	logger logger.Logger) *ProjectIndexer {
	return &ProjectIndexer{
		source:     src,
		indexStore: indexStore,
		properties: properties,
		logger:     logger,
		now:        time.Now,
	}
}

// IndexProject fetches and writes concurrently: one goroutine pages through
// the source while another writes finished pages to the store.
func (p *ProjectIndexer) IndexProject(ctx context.Context, projectKey string) error {
	startedAt := p.now()

	since, ok, err := p.properties.ReadDatetime(ctx, projectKey, PropertyLastIndexUpdateEndDate)
	if err != nil {
		return fmt.Errorf("failed to read last index date of %s: %w", projectKey, err)
	}
	if !ok {
		since = time.Time{}
		p.logger.Info("project %s has never been indexed, running full index", projectKey)
	} else {
		p.logger.Info("indexing project %s incrementally since %s", projectKey, since.Format(time.RFC3339))
	}

	pages := make(chan []*store.Document, 1)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(pages)
		return p.fetchPages(gctx, projectKey, since, pages)
	})

	indexed := 0
	g.Go(func() error {
		for docs := range pages {
			if err := p.indexStore.PutDocuments(gctx, projectKey, docs); err != nil {
				return fmt.Errorf("failed to write documents of %s: %w", projectKey, err)
			}
			indexed += len(docs)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		// a failed sibling cancels gctx, only the caller's ctx means the run was interrupted
		if ctx.Err() != nil {
			return errs.NewCancelledErr(ctx.Err())
		}
		return err
	}

	if err := p.properties.StoreDatetime(ctx, projectKey, PropertyLastIndexUpdateEndDate, startedAt, nil); err != nil {
		return fmt.Errorf("failed to store last index date of %s: %w", projectKey, err)
	}

	p.logger.Info("project %s indexed, %d documents written in %s", projectKey, indexed, p.now().Sub(startedAt))
	return nil
}

func (p *ProjectIndexer) fetchPages(ctx context.Context, projectKey string, since time.Time,
	pages chan<- []*store.Document) error {
	startAt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := p.source.FetchRecords(ctx, projectKey, since, startAt)
		if err != nil {
			return err
		}
		if len(page.Records) == 0 {
			return nil
		}

		docs := make([]*store.Document, 0, len(page.Records))
		indexedAt := p.now()
		for _, record := range page.Records {
			docs = append(docs, toDocument(projectKey, record, indexedAt))
		}

		select {
		case pages <- docs:
		case <-ctx.Done():
			return ctx.Err()
		}

		startAt += len(page.Records)
		if startAt >= page.Total {
			return nil
		}
	}
}

func toDocument(projectKey string, record source.Record, indexedAt time.Time) *store.Document {
	return &store.Document{
		ID:         utils.NewDocumentID(projectKey, record.ID),
		ProjectKey: projectKey,
		RecordID:   record.ID,
		Title:      record.Title,
		Body:       record.Body,
		Updated:    record.Updated,
		IndexedAt:  indexedAt,
	}
}

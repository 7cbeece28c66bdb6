package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"chainscreen/internal/list"
	"chainscreen/internal/list/parser"
)

// Feed binds a configured source to its publication URL and parser.
type Feed struct {
	Source list.Source
	URL    string
	Parser parser.Parser
}

// DefaultFeeds returns the three configured upstream publications. All three
// publish the SDN advanced schema, so one parser covers them.
func DefaultFeeds() []Feed {
	return []Feed{
		{
			Source: list.SourceOFACSDN,
			URL:    "https://www.treasury.gov/ofac/downloads/sanctions/1.0/sdn_advanced.xml",
			Parser: parser.NewOFACSDN(),
		},
		{
			Source: list.SourceUKSanctions,
			URL:    "https://assets.publishing.service.gov.uk/uk-sanctions-list.xml",
			Parser: parser.NewOFACSDN(),
		},
		{
			Source: list.SourceUNConsolidated,
			URL:    "https://scsanctions.un.org/resources/xml/en/consolidated.xml",
			Parser: parser.NewOFACSDN(),
		},
	}
}

// Scheduler refreshes every configured feed on an interval. Each feed runs
// the full lifecycle: fetch, ingest, parse, validate, promote. A feed failure
// is logged and retried next cycle; other feeds are unaffected.
type Scheduler struct {
	feeds     []Feed
	retriever Retriever
	lists     *list.Service
	interval  time.Duration
	logger    *slog.Logger
}

func NewScheduler(feeds []Feed, retriever Retriever, lists *list.Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		feeds:     feeds,
		retriever: retriever,
		lists:     lists,
		interval:  interval,
		logger:    logger,
	}
}

// Run refreshes immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.RefreshAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshAll(ctx)
		}
	}
}

// RefreshAll runs one cycle over every feed concurrently.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, feed := range s.feeds {
		g.Go(func() error {
			if err := s.Refresh(gctx, feed); err != nil {
				s.logger.ErrorContext(gctx, "feed refresh failed",
					"source", feed.Source,
					"url", feed.URL,
					"error", err,
				)
			}
			// A failed feed keeps its previous active version. Never cancel
			// sibling feeds over it.
			return nil
		})
	}
	_ = g.Wait()
}

// Refresh drives one feed through the full lifecycle.
func (s *Scheduler) Refresh(ctx context.Context, feed Feed) error {
	payload, err := s.retriever.Fetch(ctx, feed.URL)
	if err != nil {
		return err
	}

	version, err := s.lists.Ingest(ctx, feed.Source, payload.Body, feed.URL, payload.Checksum, feed.Parser.Version())
	if err != nil {
		return fmt.Errorf("ingest %s: %w", feed.Source, err)
	}

	records, err := feed.Parser.Parse(ctx, payload.Body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", feed.Source, err)
	}

	result, err := s.lists.Validate(ctx, version.ID, records)
	if err != nil {
		return fmt.Errorf("validate %s: %w", feed.Source, err)
	}

	if _, err := s.lists.Promote(ctx, version.ID, "scheduler"); err != nil {
		return fmt.Errorf("promote %s: %w", feed.Source, err)
	}

	s.logger.InfoContext(ctx, "feed refreshed",
		"source", feed.Source,
		"version_id", version.ID,
		"addresses", result.AddressCount,
		"quarantined", len(result.Quarantined),
	)
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// newOrOutdatedIDs returns the ids from the remote listing that are unknown
// locally or strictly newer than the known state. Equal timestamps are not a
// change, so unchanged posts are never refetched.
func newOrOutdatedIDs(known map[int64]time.Time, summaries []ItemSummary) map[int64]struct{} {
	changed := make(map[int64]struct{})
	for _, summary := range summaries {
		lastKnown, ok := known[summary.ID]
		if !ok || summary.LastModified.After(lastKnown) {
			changed[summary.ID] = struct{}{}
		}
	}
	return changed
}

// knownModTimes maps item id to the newest timestamp the feed already holds
// for it.
func knownModTimes(items []FeedItem) map[int64]time.Time {
	known := make(map[int64]time.Time, len(items))
	for _, item := range items {
		modified := item.Published
		if item.Updated.After(modified) {
			modified = item.Updated
		}
		known[item.ID] = modified
	}
	return known
}

// sortItemsByID orders items by id descending, newest post first.
func sortItemsByID(items []FeedItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
}

type categoryResult struct {
	items   []FeedItem
	changed bool
}

// GameFeed reconciles the published feed files of one game against the
// remote API: only new or edited posts are fetched, and the files are only
// rewritten when something actually changed.
type GameFeed struct {
	meta    FeedMeta
	client  *HoyolabClient
	loader  FeedFileLoader
	writers []FeedFileWriter
}

// NewGameFeed wires a game feed from its parts. Writers sharing one path are
// a config mistake (one overwrites the other) and logged as a warning.
func NewGameFeed(meta FeedMeta, client *HoyolabClient, loader FeedFileLoader, writers []FeedFileWriter) *GameFeed {
	seen := make(map[string]bool)
	for _, writer := range writers {
		path := writer.Config().Path
		if seen[path] {
			log.WithFields(log.Fields{"game": meta.Game.Name(), "path": path}).
				Warn("Multiple feed writers share the same path")
		}
		seen[path] = true
	}

	return &GameFeed{
		meta:    meta,
		client:  client,
		loader:  loader,
		writers: writers,
	}
}

// GameFeedFromConfig builds a game feed from its config section, sharing the
// given HTTP client.
func GameFeedFromConfig(config FeedConfig, client *http.Client) (*GameFeed, error) {
	writers := make([]FeedFileWriter, 0, len(config.Writers))
	for _, writerConfig := range config.Writers {
		writer, err := NewFeedFileWriter(writerConfig)
		if err != nil {
			return nil, err
		}
		writers = append(writers, writer)
	}

	var loader FeedFileLoader
	var err error
	if config.Loader != nil {
		loader, err = NewFeedFileLoader(*config.Loader)
	} else {
		loader, err = loaderFromWriters(config.Writers)
	}
	if err != nil {
		return nil, err
	}

	api := NewHoyolabClient(config.Meta.Game, config.Meta.Language, client)
	return NewGameFeed(config.Meta, api, loader, writers), nil
}

// CreateFeed runs one reconciliation pass for the game and reports whether
// any feed file was rewritten. A failure in any category aborts the pass
// before anything is written.
func (g *GameFeed) CreateFeed(ctx context.Context) (bool, error) {
	items, err := g.loader.Load()
	if err != nil {
		return false, fmt.Errorf("%s: %w", g.meta.Game.Name(), err)
	}

	byCategory := make(map[Category][]FeedItem)
	for _, item := range items {
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}

	results := make([]categoryResult, len(g.meta.Categories))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, category := range g.meta.Categories {
		i, category := i, category
		group.Go(func() error {
			result, err := g.updateCategory(groupCtx, category, byCategory[category])
			if err != nil {
				return fmt.Errorf("%s %s: %w", g.meta.Game.Name(), category.Name(), err)
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return false, err
	}

	changed := false
	for _, result := range results {
		changed = changed || result.changed
	}
	if !changed {
		log.WithField("game", g.meta.Game.Name()).Debug("Feed unchanged, skipping write")
		return false, nil
	}

	var combined []FeedItem
	for _, result := range results {
		combined = append(combined, result.items...)
	}
	sortItemsByID(combined)

	writeGroup, _ := errgroup.WithContext(ctx)
	for _, writer := range g.writers {
		writer := writer
		writeGroup.Go(func() error {
			return writer.Write(g.meta, combined)
		})
	}
	if err := writeGroup.Wait(); err != nil {
		return false, fmt.Errorf("%s: %w", g.meta.Game.Name(), err)
	}

	log.WithFields(log.Fields{
		"game":  g.meta.Game.Name(),
		"items": len(combined),
		"files": len(g.writers),
	}).Info("Feed files updated")
	return true, nil
}

// updateCategory reconciles one category: diff the remote listing against the
// known items, refetch only the delta, merge, sort and cap to the retention
// size. With an empty delta the prior items are returned untouched.
func (g *GameFeed) updateCategory(ctx context.Context, category Category, prior []FeedItem) (categoryResult, error) {
	known := knownModTimes(prior)

	summaries, err := g.client.ListSummaries(ctx, category, g.meta.CategorySize)
	if err != nil {
		return categoryResult{}, err
	}

	changed := newOrOutdatedIDs(known, summaries)
	if len(changed) == 0 {
		log.WithFields(log.Fields{"game": g.meta.Game.Name(), "category": category.Name()}).
			Debug("Category unchanged")
		return categoryResult{items: prior}, nil
	}

	// items in the delta are superseded and replaced by the fresh fetch
	kept := make([]FeedItem, 0, len(prior))
	for _, item := range prior {
		if _, outdated := changed[item.ID]; !outdated {
			kept = append(kept, item)
		}
	}

	fetched := make([]FeedItem, len(changed))
	group, groupCtx := errgroup.WithContext(ctx)
	i := 0
	for id := range changed {
		id := id
		idx := i
		group.Go(func() error {
			item, err := g.client.FetchItem(groupCtx, id)
			if err != nil {
				return err
			}
			fetched[idx] = item
			return nil
		})
		i++
	}
	if err := group.Wait(); err != nil {
		return categoryResult{}, err
	}

	items := append(kept, fetched...)
	sortItemsByID(items)
	if len(items) > g.meta.CategorySize {
		items = items[:g.meta.CategorySize]
	}

	log.WithFields(log.Fields{
		"game":     g.meta.Game.Name(),
		"category": category.Name(),
		"fetched":  len(fetched),
		"items":    len(items),
	}).Info("Category updated")
	return categoryResult{items: items, changed: true}, nil
}

// GameFeedCollection drives reconciliation across all configured games.
type GameFeedCollection struct {
	feeds []*GameFeed
}

// GameFeedCollectionFromConfigs builds all game feeds, sharing one HTTP
// client across them.
func GameFeedCollectionFromConfigs(configs []FeedConfig, client *http.Client) (*GameFeedCollection, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	feeds := make([]*GameFeed, 0, len(configs))
	for _, config := range configs {
		feed, err := GameFeedFromConfig(config, client)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	return &GameFeedCollection{feeds: feeds}, nil
}

// CreateFeeds reconciles every game concurrently. One game failing does not
// stop the others; the first error is returned after all games finished.
func (c *GameFeedCollection) CreateFeeds(ctx context.Context) error {
	var group errgroup.Group
	for _, feed := range c.feeds {
		feed := feed
		group.Go(func() error {
			changed, err := feed.CreateFeed(ctx)
			if err != nil {
				log.WithError(err).WithField("game", feed.meta.Game.Name()).Error("Feed update failed")
				return err
			}
			log.WithFields(log.Fields{"game": feed.meta.Game.Name(), "changed": changed}).
				Debug("Feed update finished")
			return nil
		})
	}
	return group.Wait()
}

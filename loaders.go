package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FeedFileLoader reads the previously written items of a feed file. A file
// that does not exist yet yields no items and no error.
type FeedFileLoader interface {
	Load() ([]FeedItem, error)
	Config() FeedFileConfig
}

// NewFeedFileLoader creates a loader for the configured format.
func NewFeedFileLoader(config FeedFileConfig) (FeedFileLoader, error) {
	switch config.Format {
	case FormatJSON, FormatAtom:
		return &feedFileLoader{config: config}, nil
	}
	return nil, fmt.Errorf("%w: no loader for format %q", ErrConfig, config.Format)
}

// loaderFromWriters selects the re-read source from the configured
// destinations, preferring the JSON file.
func loaderFromWriters(writers []FeedFileConfig) (FeedFileLoader, error) {
	for _, writer := range writers {
		if writer.Format == FormatJSON {
			return NewFeedFileLoader(FeedFileConfig{Format: writer.Format, Path: writer.Path})
		}
	}
	for _, writer := range writers {
		if loader, err := NewFeedFileLoader(FeedFileConfig{Format: writer.Format, Path: writer.Path}); err == nil {
			return loader, nil
		}
	}
	return nil, fmt.Errorf("%w: could not determine a feed loader from the writers", ErrConfig)
}

// feedFileLoader parses JSON-Feed and Atom files back into feed items; the
// parser detects the format from the file content.
type feedFileLoader struct {
	config FeedFileConfig
}

func (l *feedFileLoader) Config() FeedFileConfig { return l.config }

func (l *feedFileLoader) Load() ([]FeedItem, error) {
	file, err := os.Open(l.config.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: could not read feed file %q: %v", ErrFeedIO, l.config.Path, err)
	}
	defer func() { _ = file.Close() }()

	parsed, err := gofeed.NewParser().Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%w: could not parse feed file %q: %v", ErrFeedFormat, l.config.Path, err)
	}

	items := make([]FeedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		item, err := feedItemFromEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: feed file %q: %v", ErrFeedFormat, l.config.Path, err)
		}
		items = append(items, item)
	}

	return items, nil
}

// feedItemFromEntry converts a parsed feed entry back into a FeedItem.
func feedItemFromEntry(entry *gofeed.Item) (FeedItem, error) {
	// Atom ids carry a tag prefix, JSON-Feed ids are the bare post id
	idStr := entry.GUID
	if i := strings.LastIndex(idStr, ":"); i >= 0 {
		idStr = idStr[i+1:]
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return FeedItem{}, fmt.Errorf("invalid item id %q", entry.GUID)
	}

	if len(entry.Categories) == 0 {
		return FeedItem{}, fmt.Errorf("item %d has no category", id)
	}
	category, err := CategoryFromName(entry.Categories[0])
	if err != nil {
		return FeedItem{}, fmt.Errorf("item %d: %v", id, err)
	}

	if entry.PublishedParsed == nil {
		return FeedItem{}, fmt.Errorf("item %d has no publish date", id)
	}

	var author string
	switch {
	case len(entry.Authors) > 0:
		author = entry.Authors[0].Name
	case entry.Author != nil:
		author = entry.Author.Name
	}

	item := FeedItem{
		ID:        id,
		Title:     entry.Title,
		Author:    author,
		Content:   entry.Content,
		Category:  category,
		Published: *entry.PublishedParsed,
	}
	if entry.UpdatedParsed != nil {
		item.Updated = *entry.UpdatedParsed
	}
	if entry.Image != nil {
		item.Image = entry.Image.URL
	}

	return item, nil
}

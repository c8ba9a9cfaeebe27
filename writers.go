package main

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
)

const (
	hoyolabArticleURL = "https://www.hoyolab.com/article/%d"
	hoyolabCirclesURL = "https://www.hoyolab.com/circles/%d"
	jsonFeedVersion   = "https://jsonfeed.org/version/1.1"
)

// FeedFileWriter replaces the full content of one feed file destination.
type FeedFileWriter interface {
	Write(meta FeedMeta, items []FeedItem) error
	Config() FeedFileConfig
}

// NewFeedFileWriter creates a writer for the configured format.
func NewFeedFileWriter(config FeedFileConfig) (FeedFileWriter, error) {
	switch config.Format {
	case FormatJSON:
		return &jsonFeedFileWriter{config: config}, nil
	case FormatAtom:
		return &atomFeedFileWriter{config: config}, nil
	}
	return nil, fmt.Errorf("%w: no writer for format %q", ErrConfig, config.Format)
}

// jsonFeedFileWriter exports the feed in JSON-Feed 1.1 format
// (https://www.jsonfeed.org/version/1.1/).
type jsonFeedFileWriter struct {
	config FeedFileConfig
}

func (w *jsonFeedFileWriter) Config() FeedFileConfig { return w.config }

func (w *jsonFeedFileWriter) Write(meta FeedMeta, items []FeedItem) error {
	feed := &feeds.JSONFeed{
		Version:     jsonFeedVersion,
		Title:       meta.FeedTitle(),
		Language:    string(meta.Language),
		HomePageUrl: fmt.Sprintf(hoyolabCirclesURL, meta.Game),
		FeedUrl:     w.config.URL,
		Icon:        meta.Icon,
	}

	for _, item := range items {
		feed.Items = append(feed.Items, jsonFeedItem(item))
	}

	out, err := feed.ToJSON()
	if err != nil {
		return fmt.Errorf("%w: could not encode JSON feed: %v", ErrFeedIO, err)
	}
	if err := os.WriteFile(w.config.Path, []byte(out), 0644); err != nil {
		return fmt.Errorf("%w: could not write JSON feed to %q: %v", ErrFeedIO, w.config.Path, err)
	}

	return nil
}

func jsonFeedItem(item FeedItem) *feeds.JSONItem {
	published := item.Published
	author := &feeds.JSONAuthor{Name: item.Author}

	jsonItem := &feeds.JSONItem{
		Id:            strconv.FormatInt(item.ID, 10),
		Url:           fmt.Sprintf(hoyolabArticleURL, item.ID),
		Title:         item.Title,
		Author:        author,
		Authors:       []*feeds.JSONAuthor{author},
		Tags:          []string{item.Category.Name()},
		ContentHTML:   item.Content,
		Image:         item.Image,
		PublishedDate: &published,
	}
	if !item.Updated.IsZero() {
		updated := item.Updated
		jsonItem.ModifiedDate = &updated
	}

	return jsonItem
}

// The Atom shape is marshalled directly because the feeds package cannot emit
// entry categories, which the loader needs to partition items on re-read.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Lang    string      `xml:"xml:lang,attr,omitempty"`
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Icon    string      `xml:"icon,omitempty"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomPerson struct {
	Name string `xml:"name"`
}

type atomContent struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Link      atomLink     `xml:"link"`
	Category  atomCategory `xml:"category"`
	Published string       `xml:"published"`
	Updated   string       `xml:"updated"`
	Author    atomPerson   `xml:"author"`
	Content   atomContent  `xml:"content"`
}

// atomFeedFileWriter exports the feed in Atom format
// (https://validator.w3.org/feed/docs/atom.html).
type atomFeedFileWriter struct {
	config FeedFileConfig
}

func (w *atomFeedFileWriter) Config() FeedFileConfig { return w.config }

func (w *atomFeedFileWriter) Write(meta FeedMeta, items []FeedItem) error {
	feed := atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Lang:    string(meta.Language),
		ID:      fmt.Sprintf("tag:hoyolab.com,2021:/official/%d", meta.Game),
		Title:   meta.FeedTitle(),
		Updated: time.Now().Format(time.RFC3339),
		Links: []atomLink{
			{Href: fmt.Sprintf(hoyolabCirclesURL, meta.Game), Rel: "alternate", Type: "text/html"},
		},
		Icon: meta.Icon,
	}
	if w.config.URL != "" {
		feed.Links = append(feed.Links, atomLink{Href: w.config.URL, Rel: "self", Type: "application/atom+xml"})
	}

	for _, item := range items {
		feed.Entries = append(feed.Entries, atomEntryFromItem(item))
	}

	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: could not encode Atom feed: %v", ErrFeedIO, err)
	}
	out = append([]byte(xml.Header), out...)

	if err := os.WriteFile(w.config.Path, out, 0644); err != nil {
		return fmt.Errorf("%w: could not write Atom feed to %q: %v", ErrFeedIO, w.config.Path, err)
	}

	return nil
}

func atomEntryFromItem(item FeedItem) atomEntry {
	// the updated element is mandatory in Atom
	updated := item.Updated
	if updated.IsZero() {
		updated = item.Published
	}

	return atomEntry{
		ID:        fmt.Sprintf("tag:hoyolab.com,%s:%d", item.Published.Format("2006-01-02"), item.ID),
		Title:     item.Title,
		Link:      atomLink{Href: fmt.Sprintf(hoyolabArticleURL, item.ID), Rel: "alternate", Type: "text/html"},
		Category:  atomCategory{Term: item.Category.Name()},
		Published: item.Published.Format(time.RFC3339),
		Updated:   updated.Format(time.RFC3339),
		Author:    atomPerson{Name: item.Author},
		Content:   atomContent{Type: "html", Value: item.Content},
	}
}

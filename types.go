package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Game identifies one Hoyolab community by its numeric API code ("gids").
type Game int

const (
	GameHonkai   Game = 1
	GameGenshin  Game = 2
	GameThemis   Game = 4
	GameStarRail Game = 6
	GameZenless  Game = 8
)

// 3, 5 and 7 are reserved or unused community codes
var gamesByName = map[string]Game{
	"honkai":   GameHonkai,
	"genshin":  GameGenshin,
	"themis":   GameThemis,
	"starrail": GameStarRail,
	"zenless":  GameZenless,
}

var gameDisplayNames = map[Game]string{
	GameHonkai:   "Honkai",
	GameGenshin:  "Genshin",
	GameThemis:   "Themis",
	GameStarRail: "Starrail",
	GameZenless:  "Zenless",
}

// GameFromName resolves a config section name like "genshin" to a Game.
func GameFromName(name string) (Game, error) {
	game, ok := gamesByName[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("unknown game %q", name)
	}
	return game, nil
}

// Name returns the lowercase config name of the game.
func (g Game) Name() string {
	for name, game := range gamesByName {
		if game == g {
			return name
		}
	}
	return fmt.Sprintf("game(%d)", int(g))
}

// DisplayName returns the capitalized name used in feed titles.
func (g Game) DisplayName() string {
	if name, ok := gameDisplayNames[g]; ok {
		return name
	}
	return g.Name()
}

// Category is the official post classification ("type" API parameter).
type Category int

const (
	CategoryNotices Category = 1
	CategoryEvents  Category = 2
	CategoryInfo    Category = 3
)

// AllCategories returns every known category, in API code order.
func AllCategories() []Category {
	return []Category{CategoryNotices, CategoryEvents, CategoryInfo}
}

var categoryNames = map[Category]string{
	CategoryNotices: "Notices",
	CategoryEvents:  "Events",
	CategoryInfo:    "Info",
}

// CategoryFromName resolves a category name (any casing) to a Category.
func CategoryFromName(name string) (Category, error) {
	for category, categoryName := range categoryNames {
		if strings.EqualFold(name, categoryName) {
			return category, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// Name returns the title-case category name used as feed tag/term.
func (c Category) Name() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

func (c Category) valid() bool {
	_, ok := categoryNames[c]
	return ok
}

// Language is a Hoyolab language tag like "en-us".
type Language string

// DefaultLanguage is used when the config does not set one.
const DefaultLanguage = Language("en-us")

var knownLanguages = map[Language]bool{
	"de-de": true, "en-us": true, "es-es": true, "fr-fr": true,
	"id-id": true, "it-it": true, "ja-jp": true, "ko-kr": true,
	"pt-pt": true, "ru-ru": true, "th-th": true, "tr-tr": true,
	"vi-vn": true, "zh-cn": true, "zh-tw": true,
}

// LanguageFromTag validates and normalizes a language tag.
func LanguageFromTag(tag string) (Language, error) {
	lang := Language(strings.ToLower(tag))
	if !knownLanguages[lang] {
		return "", fmt.Errorf("unknown language %q", tag)
	}
	return lang, nil
}

// FeedFormat is a supported feed file format.
type FeedFormat string

const (
	FormatJSON FeedFormat = "json"
	FormatAtom FeedFormat = "atom"
)

// FormatFromName resolves a config format tag to a FeedFormat.
func FormatFromName(name string) (FeedFormat, error) {
	switch FeedFormat(strings.ToLower(name)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatAtom:
		return FormatAtom, nil
	}
	return "", fmt.Errorf("unknown feed format %q", name)
}

// FeedItem is a single syndication entry. An edit of a post produces a new
// FeedItem that replaces the old one under the same ID.
type FeedItem struct {
	ID        int64
	Title     string
	Author    string
	Content   string
	Category  Category
	Published time.Time
	Updated   time.Time // zero when the post was never modified
	Image     string
}

// ItemSummary is the lightweight listing shape used only for change
// detection; it is never persisted.
type ItemSummary struct {
	ID           int64
	LastModified time.Time
}

// FeedMeta describes one game feed: what to sync and how to present it.
type FeedMeta struct {
	Game         Game
	CategorySize int
	Categories   []Category
	Language     Language
	Title        string
	Icon         string
}

// FeedTitle returns the configured title or a "<Game> News" default.
func (m FeedMeta) FeedTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Game.DisplayName() + " News"
}

// FeedFileConfig is one feed file destination (or explicit loader source).
type FeedFileConfig struct {
	Format FeedFormat
	Path   string
	URL    string
}

// FeedConfig is the full per-game feed specification from the config file.
type FeedConfig struct {
	Meta    FeedMeta
	Writers []FeedFileConfig
	Loader  *FeedFileConfig // nil: auto-select from the writers
}

// apiEnvelope is the common Hoyolab response wrapper. Retcode is a pointer so
// a missing field can be told apart from retcode 0.
type apiEnvelope struct {
	Retcode *int            `json:"retcode"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// apiNewsList is the data payload of the getNewsList endpoint.
type apiNewsList struct {
	List []apiPost `json:"list"`
}

// apiPostData is the data payload of the getPostFull endpoint.
type apiPostData struct {
	Post *apiPost `json:"post"`
}

// apiPost is the minimally validated wire shape of one post.
type apiPost struct {
	Post           apiPostBody `json:"post"`
	User           apiUser     `json:"user"`
	LastModifyTime int64       `json:"last_modify_time"` // 0: never modified
	ImageList      []apiImage  `json:"image_list"`
}

type apiPostBody struct {
	PostID       string `json:"post_id"`
	Subject      string `json:"subject"`
	Content      string `json:"content"`
	CreatedAt    int64  `json:"created_at"`
	OfficialType int    `json:"official_type"`
}

type apiUser struct {
	Nickname string `json:"nickname"`
}

type apiImage struct {
	URL string `json:"url"`
}

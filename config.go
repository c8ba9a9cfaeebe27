package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

// ConfigPathEnv overrides the default config file location.
const ConfigPathEnv = "HRF_CONFIG_PATH"

const defaultConfigFile = `# Hoyolab feed configuration.
# Root level entries are defaults for every game section.

language = "en-us"
category_size = 5

[games.genshin]
title = "Genshin Impact News"

[games.genshin.file.json]
path = "genshin.json"
# url = "https://example.org/genshin.json"

[games.genshin.file.atom]
path = "genshin.xml"
`

type tomlFileConfig struct {
	Path string `toml:"path"`
	URL  string `toml:"url"`
}

type tomlGameConfig struct {
	Title        string                    `toml:"title"`
	Icon         string                    `toml:"icon"`
	Language     string                    `toml:"language"`
	CategorySize int                       `toml:"category_size"`
	Categories   []string                  `toml:"categories"`
	Loader       string                    `toml:"loader"`
	File         map[string]tomlFileConfig `toml:"file"`
}

// tomlConfig is the raw config file shape. Root level fields are defaults
// merged into every game section.
type tomlConfig struct {
	Language     string                    `toml:"language"`
	CategorySize int                       `toml:"category_size"`
	Categories   []string                  `toml:"categories"`
	Icon         string                    `toml:"icon"`
	Games        map[string]tomlGameConfig `toml:"games"`
}

// DefaultConfigPath returns $HRF_CONFIG_PATH or ~/.hoyolab_feeds.toml.
func DefaultConfigPath() string {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hoyolab_feeds.toml"
	}
	return filepath.Join(home, ".hoyolab_feeds.toml")
}

// CreateDefaultConfig writes a commented starter config to path.
func CreateDefaultConfig(path string) error {
	if err := os.WriteFile(path, []byte(defaultConfigFile), 0644); err != nil {
		return fmt.Errorf("%w: could not write default config to %q: %v", ErrConfig, path, err)
	}
	return nil
}

// LoadFeedConfigs reads the TOML config file and returns one validated
// FeedConfig per game section, in stable name order.
func LoadFeedConfigs(path string) ([]FeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read config file at %q: %v", ErrConfig, path, err)
	}

	var cfg tomlConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: could not parse config file: %v", ErrConfig, err)
	}

	if len(cfg.Games) == 0 {
		return nil, fmt.Errorf("%w: no game sections found", ErrConfig)
	}

	names := make([]string, 0, len(cfg.Games))
	for name := range cfg.Games {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]FeedConfig, 0, len(names))
	for _, name := range names {
		feedConfig, err := feedConfigFromSection(name, cfg, cfg.Games[name])
		if err != nil {
			return nil, err
		}
		configs = append(configs, feedConfig)
	}

	log.WithFields(log.Fields{"path": path, "games": len(configs)}).Debug("Config loaded")
	return configs, nil
}

// feedConfigFromSection builds one game's FeedConfig, filling unset fields
// from the root level defaults.
func feedConfigFromSection(name string, root tomlConfig, section tomlGameConfig) (FeedConfig, error) {
	game, err := GameFromName(name)
	if err != nil {
		return FeedConfig{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	langTag := section.Language
	if langTag == "" {
		langTag = root.Language
	}
	lang := DefaultLanguage
	if langTag != "" {
		if lang, err = LanguageFromTag(langTag); err != nil {
			return FeedConfig{}, fmt.Errorf("%w: game %q: %v", ErrConfig, name, err)
		}
	}

	size := section.CategorySize
	if size == 0 {
		size = root.CategorySize
	}
	if size == 0 {
		size = DefaultCategorySize
	}
	if size < 1 {
		return FeedConfig{}, fmt.Errorf("%w: game %q: category_size must be >= 1", ErrConfig, name)
	}

	names := section.Categories
	if len(names) == 0 {
		names = root.Categories
	}
	categories := AllCategories()
	if len(names) > 0 {
		categories = make([]Category, 0, len(names))
		for _, categoryName := range names {
			category, err := CategoryFromName(categoryName)
			if err != nil {
				return FeedConfig{}, fmt.Errorf("%w: game %q: %v", ErrConfig, name, err)
			}
			categories = append(categories, category)
		}
	}

	icon := section.Icon
	if icon == "" {
		icon = root.Icon
	}

	if len(section.File) == 0 {
		return FeedConfig{}, fmt.Errorf("%w: game %q has no file sections", ErrConfig, name)
	}

	formats := make([]string, 0, len(section.File))
	for formatName := range section.File {
		formats = append(formats, formatName)
	}
	sort.Strings(formats)

	writers := make([]FeedFileConfig, 0, len(formats))
	for _, formatName := range formats {
		format, err := FormatFromName(formatName)
		if err != nil {
			return FeedConfig{}, fmt.Errorf("%w: game %q: %v", ErrConfig, name, err)
		}
		fileConfig := section.File[formatName]
		if fileConfig.Path == "" {
			return FeedConfig{}, fmt.Errorf("%w: game %q: %s file has no path", ErrConfig, name, format)
		}
		writers = append(writers, FeedFileConfig{Format: format, Path: fileConfig.Path, URL: fileConfig.URL})
	}

	feedConfig := FeedConfig{
		Meta: FeedMeta{
			Game:         game,
			CategorySize: size,
			Categories:   categories,
			Language:     lang,
			Title:        section.Title,
			Icon:         icon,
		},
		Writers: writers,
	}

	if section.Loader != "" {
		format, err := FormatFromName(section.Loader)
		if err != nil {
			return FeedConfig{}, fmt.Errorf("%w: game %q: %v", ErrConfig, name, err)
		}
		for _, writer := range writers {
			if writer.Format == format {
				loader := FeedFileConfig{Format: writer.Format, Path: writer.Path}
				feedConfig.Loader = &loader
				break
			}
		}
		if feedConfig.Loader == nil {
			return FeedConfig{}, fmt.Errorf("%w: game %q: loader format %q has no file section", ErrConfig, name, section.Loader)
		}
	}

	return feedConfig, nil
}

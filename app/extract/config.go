package extract

import (
	"fmt"
	"strings"
)

type ContentMode string

const (
	ContentModeText        ContentMode = "text"
	ContentModeHTML        ContentMode = "html"
	ContentModeReadability ContentMode = "readability"
)

// ParseConfig declares how list items are located in a document and how each
// article field is read from an item. Field selectors are relative to the item.
type ParseConfig struct {
	ListSelector     string            `yaml:"list"`
	TitleSelector    string            `yaml:"title"`
	LinkSelector     string            `yaml:"link"`
	LinkAttribute    string            `yaml:"link_attribute"`
	ContentSelector  string            `yaml:"content"`
	ContentMode      ContentMode       `yaml:"content_mode"`
	DateSelector     string            `yaml:"date"`
	DateFormat       string            `yaml:"date_format"` // e.g. "yyyy-MM-dd HH:mm:ss"
	ImageSelector    string            `yaml:"image"`
	ImageAttribute   string            `yaml:"image_attribute"`
	AuthorSelector   string            `yaml:"author"`
	CategorySelector string            `yaml:"category"`
	CustomSelectors  map[string]string `yaml:"custom"`
	NeedFullURL      bool              `yaml:"need_full_url"`
	URLPrefix        string            `yaml:"url_prefix"`
}

func DefaultParseConfig() ParseConfig {
	return ParseConfig{
		LinkAttribute:  "href",
		ImageAttribute: "src",
		ContentMode:    ContentModeHTML,
		NeedFullURL:    true,
	}
}

// WithDefaults fills attribute names and content mode left empty.
func (c ParseConfig) WithDefaults() ParseConfig {
	if c.LinkAttribute == "" {
		c.LinkAttribute = "href"
	}
	if c.ImageAttribute == "" {
		c.ImageAttribute = "src"
	}
	if c.ContentMode == "" {
		c.ContentMode = ContentModeHTML
	}
	return c
}

func (c ParseConfig) Validate() error {
	required := []struct {
		name, value string
	}{
		{"list selector", c.ListSelector},
		{"title selector", c.TitleSelector},
		{"link selector", c.LinkSelector},
	}

	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}

	switch c.ContentMode {
	case "", ContentModeText, ContentModeHTML, ContentModeReadability:
	default:
		return fmt.Errorf("unknown content mode: %s", c.ContentMode)
	}

	return nil
}

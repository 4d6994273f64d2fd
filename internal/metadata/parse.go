package metadata

import (
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// Metadata is a read-only structured view of a metadata block.
type Metadata struct {
	Title   string   `yaml:"title"`
	Date    string   `yaml:"date"`
	Lastmod string   `yaml:"lastmod"`
	Tags    []string `yaml:"tags"`
	Draft   bool     `yaml:"draft"`
	Summary string   `yaml:"summary"`
}

// Parse decodes the leading block of text. Text without a block yields zero
// Metadata and the trimmed text as body.
func Parse(text string) (Metadata, string, error) {
	if Extract(text) == "" {
		return Metadata{}, strings.TrimSpace(text), nil
	}
	var m Metadata
	body, err := frontmatter.Parse(strings.NewReader(text), &m)
	if err != nil {
		return Metadata{}, "", fmt.Errorf("metadata: parse: %w", err)
	}
	return m, strings.TrimSpace(string(body)), nil
}

package tool

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	contractx "github.com/natthaponj/relaybot/relay/contract"
)

type catalogFile struct {
	Tools []contractx.Descriptor `yaml:"tools"`
}

// LoadDescriptors reads tool descriptors from a YAML file. An empty path
// falls back to the built-in catalog.
func LoadDescriptors(path string) ([]contractx.Descriptor, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultDescriptors(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}
	if len(file.Tools) == 0 {
		return nil, fmt.Errorf("tool catalog %s defines no tools", path)
	}
	return file.Tools, nil
}

// DefaultDescriptors is the built-in AWS news catalog, targeting the
// companion news-fetch service.
func DefaultDescriptors() []contractx.Descriptor {
	const endpoint = "http://localhost:8000/tools"
	return []contractx.Descriptor{
		{
			Name:        "get_aws_news",
			Description: "Returns AWS news articles with announcements of new products, services, and capabilities for the specified topic.",
			Endpoint:    endpoint + "/get_aws_news",
			Params: []contractx.Param{
				{Name: "topic", Type: "string", Description: "AWS service or topic, e.g. 's3', 'ec2', 'lambda'", Required: true},
				{Name: "news_type", Type: "string", Description: "Filter by type: 'all', 'news', or 'blogs'"},
				{Name: "number_of_results", Type: "integer", Description: "Number of results to return"},
				{Name: "since_date", Type: "string", Description: "ISO 8601 date to filter news since"},
			},
		},
		{
			Name:        "get_aws_announcements",
			Description: "Returns only official AWS announcements for the specified topic.",
			Endpoint:    endpoint + "/get_aws_announcements",
			Params: []contractx.Param{
				{Name: "topic", Type: "string", Description: "AWS service or topic", Required: true},
				{Name: "number_of_results", Type: "integer", Description: "Number of results to return"},
				{Name: "since_date", Type: "string", Description: "ISO 8601 date filter"},
			},
		},
		{
			Name:        "get_aws_blogs",
			Description: "Returns only AWS blog posts for the specified topic.",
			Endpoint:    endpoint + "/get_aws_blogs",
			Params: []contractx.Param{
				{Name: "topic", Type: "string", Description: "AWS service or topic", Required: true},
				{Name: "number_of_results", Type: "integer", Description: "Number of results to return"},
			},
		},
		{
			Name:        "get_aws_feed_news",
			Description: "Fetches the latest AWS announcements directly from the official What's New feed.",
			Endpoint:    endpoint + "/get_aws_feed_news",
			Params: []contractx.Param{
				{Name: "max_articles", Type: "integer", Description: "Maximum number of articles to return"},
				{Name: "search_keywords", Type: "string", Description: "Optional keywords to filter the feed"},
			},
		},
	}
}

// Package items looks up menu item names in the Elasticsearch item catalog to
// suggest alternatives when an item filter matches nothing.
package items

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultIndex = "menu_items"
	searchSize   = 50
	minTokenLen  = 3
)

// ESCatalog searches the item-name index.
type ESCatalog struct {
	client *elasticsearch.Client
	index  string
}

func NewESCatalog(client *elasticsearch.Client, index string) *ESCatalog {
	if index == "" {
		index = defaultIndex
	}
	return &ESCatalog{client: client, index: index}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Suggest returns up to max distinct item names containing the fragment, or
// failing that any of its words, case-insensitively. Names containing the
// whole fragment come first.
func (c *ESCatalog) Suggest(ctx context.Context, fragment string, max int) ([]string, error) {
	terms := searchTerms(fragment)
	if len(terms) == 0 || max <= 0 {
		return nil, nil
	}

	body, err := json.Marshal(buildQuery(terms))
	if err != nil {
		return nil, fmt.Errorf("marshal item query: %w", err)
	}

	size := searchSize
	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("item search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("item search error: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode item search: %w", err)
	}

	names := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		names = append(names, h.Source.Name)
	}
	return rank(names, terms, max), nil
}

func searchTerms(fragment string) []string {
	full := strings.ToLower(strings.Join(strings.Fields(fragment), " "))
	if full == "" {
		return nil
	}
	terms := []string{full}
	for _, w := range strings.Fields(full) {
		if len(w) >= minTokenLen && w != full {
			terms = append(terms, w)
		}
	}
	return terms
}

func buildQuery(terms []string) map[string]interface{} {
	should := make([]interface{}, 0, len(terms))
	for _, t := range terms {
		should = append(should, map[string]interface{}{
			"wildcard": map[string]interface{}{
				"name.keyword": map[string]interface{}{
					"value":            "*" + escapeWildcard(t) + "*",
					"case_insensitive": true,
				},
			},
		})
	}
	return map[string]interface{}{
		"_source": []string{"name"},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}
}

func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

// rank filters names in-process, de-duplicates case-insensitively and caps the list.
func rank(names, terms []string, max int) []string {
	type scored struct {
		name  string
		score int
	}
	seen := make(map[string]bool, len(names))
	var out []scored
	for _, n := range names {
		trimmed := strings.TrimSpace(n)
		key := strings.ToLower(trimmed)
		if trimmed == "" || seen[key] {
			continue
		}
		score := 0
		for i, t := range terms {
			if strings.Contains(key, t) {
				if i == 0 {
					score = 2
				} else if score == 0 {
					score = 1
				}
			}
		}
		if score == 0 {
			continue
		}
		seen[key] = true
		out = append(out, scored{name: trimmed, score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > max {
		out = out[:max]
	}
	result := make([]string, len(out))
	for i, s := range out {
		result[i] = s.name
	}
	return result
}

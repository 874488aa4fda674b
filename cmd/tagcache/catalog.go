package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tagcache/internal/cache"
)

// PageMeta is the SEO metadata a listing page needs before it can render.
type PageMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

// catalog stands in for the database queries behind the site's hot pages.
type catalog struct {
	latency time.Duration
}

var (
	offeringTypes = []string{"buy", "rent", "off-plan", "commercial"}
	communities   = []string{"dubai-marina", "palm-jumeirah", "downtown", "jumeirah-village-circle"}
)

func (c catalog) offeringType(slug string) cache.Fetcher[PageMeta] {
	return func(ctx context.Context) (PageMeta, error) {
		if err := c.wait(ctx); err != nil {
			return PageMeta{}, err
		}
		name := titleCase(slug)
		return PageMeta{
			Title:       fmt.Sprintf("Properties to %s", name),
			Description: fmt.Sprintf("Browse %s listings across every community.", strings.ToLower(name)),
			Keywords:    []string{slug, "real estate"},
		}, nil
	}
}

func (c catalog) community(slug string) cache.Fetcher[PageMeta] {
	return func(ctx context.Context) (PageMeta, error) {
		if err := c.wait(ctx); err != nil {
			return PageMeta{}, err
		}
		name := titleCase(slug)
		return PageMeta{
			Title:       fmt.Sprintf("%s Homes for Sale and Rent", name),
			Description: fmt.Sprintf("Apartments, villas and townhouses in %s.", name),
			Keywords:    []string{slug, "community"},
		}, nil
	}
}

func (c catalog) page(slug string) cache.Fetcher[PageMeta] {
	return func(ctx context.Context) (PageMeta, error) {
		if err := c.wait(ctx); err != nil {
			return PageMeta{}, err
		}
		return PageMeta{Title: titleCase(slug), Description: "Luxury property insights."}, nil
	}
}

func (c catalog) wait(ctx context.Context) error {
	t := time.NewTimer(c.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// warmEntries lists the keys every request path touches.
func (c catalog) warmEntries() []cache.WarmEntry[PageMeta] {
	entries := make([]cache.WarmEntry[PageMeta], 0, len(offeringTypes)+len(communities))
	for _, slug := range offeringTypes {
		entries = append(entries, cache.WarmEntry[PageMeta]{
			Key:   "offering-type:" + slug,
			Fetch: c.offeringType(slug),
			TTL:   time.Hour,
			Tags:  []string{"offering-types"},
		})
	}
	for _, slug := range communities {
		entries = append(entries, cache.WarmEntry[PageMeta]{
			Key:   "community:" + slug,
			Fetch: c.community(slug),
			Tags:  []string{"communities"},
		})
	}
	return entries
}

func titleCase(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

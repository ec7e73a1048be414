package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stockbot/internal/domain/model"
)

// The provider set ships as deterministic stand-ins until API keys are wired
// in. Each source yields headlines spaced five hours apart so freshness
// filters have something to bite on.

func mockProvider(source string) Provider {
	return func(ctx context.Context, ticker string, limit int) ([]model.NewsItem, error) {
		base := time.Now().UTC()
		ticker = strings.ToUpper(ticker)
		items := make([]model.NewsItem, 0, limit)
		for i := 0; i < limit; i++ {
			items = append(items, model.NewsItem{
				Source:       source,
				Headline:     fmt.Sprintf("%s update %d from %s", ticker, i+1, source),
				Summary:      fmt.Sprintf("Short summary %d for %s from %s.", i+1, ticker, source),
				PublishedUTC: base.Add(-time.Duration(i*5) * time.Hour),
			})
		}
		return items, nil
	}
}

// DefaultProviders returns the full provider set in router priority order.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		"gdelt":    mockProvider("gdelt"),
		"newsdata": mockProvider("newsdata"),
		"gnews":    mockProvider("gnews"),
		"guardian": mockProvider("guardian"),
	}
}

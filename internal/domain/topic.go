package domain

import (
	"fmt"
	"time"
)

// Outcome is a single outcome of a prediction market topic.
type Outcome struct {
	Label   string  `json:"label"`
	Price   float64 `json:"price"` // probability as decimal (0.65 = 65%)
	TokenID string  `json:"tokenId,omitempty"`
}

// Percentage returns the price as a formatted percentage string.
func (o Outcome) Percentage() string {
	return fmt.Sprintf("%.1f%%", o.Price*100)
}

// Topic is a discussable prediction market question. Topics are immutable
// once fetched; components reference them but never mutate them.
type Topic struct {
	ID          string     `json:"id"`
	Question    string     `json:"question"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Category    string     `json:"category,omitempty"`
	Outcomes    []Outcome  `json:"outcomes"`
	Volume24h   float64    `json:"volume24h"`
	Liquidity   float64    `json:"liquidity"`
	EndDate     *time.Time `json:"endDate,omitempty"`
}

// FormattedOdds returns outcome labels mapped to percentage strings.
func (t Topic) FormattedOdds() map[string]string {
	odds := make(map[string]string, len(t.Outcomes))
	for _, o := range t.Outcomes {
		odds[o.Label] = o.Percentage()
	}
	return odds
}

// ShortQuestion returns the question truncated for display. Truncation
// counts runes so a multibyte question never yields invalid UTF-8.
func (t Topic) ShortQuestion() string {
	runes := []rune(t.Question)
	if len(runes) <= 50 {
		return t.Question
	}
	return string(runes[:47]) + "..."
}

// FormattedVolume returns a human-readable 24h volume.
func (t Topic) FormattedVolume() string {
	switch {
	case t.Volume24h >= 1_000_000:
		return fmt.Sprintf("$%.1fM", t.Volume24h/1_000_000)
	case t.Volume24h >= 1_000:
		return fmt.Sprintf("$%.1fK", t.Volume24h/1_000)
	default:
		return fmt.Sprintf("$%.0f", t.Volume24h)
	}
}

// ToInfo converts a Topic to the viewer-facing TopicInfo view.
func (t Topic) ToInfo() TopicInfo {
	return TopicInfo{
		ID:       t.ID,
		Question: t.Question,
		Odds:     t.FormattedOdds(),
		Volume:   t.FormattedVolume(),
	}
}

// TopicInfo is the compact view of a topic carried in snapshots.
type TopicInfo struct {
	ID       string            `json:"id"`
	Question string            `json:"question"`
	Odds     map[string]string `json:"odds"`
	Volume   string            `json:"volume"`
}

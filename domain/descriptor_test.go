package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDescriptorNormalize(t *testing.T) {
	d := Descriptor{Name: "media-coverage"}.Normalize()

	assert.Equal(t, "media_coverage", d.Table)
	assert.Equal(t, "date", d.SortField)
	assert.Equal(t, "views", d.CounterField)
	assert.Equal(t, "media-coverage-media", d.MediaBucket)
}

func TestDescriptorNormalize_KeepsExplicitValues(t *testing.T) {
	d := Descriptor{Name: "news", Table: "press", SortField: "published_at"}.Normalize()

	assert.Equal(t, "press", d.Table)
	assert.Equal(t, "published_at", d.SortField)
}

func TestDescriptorKeys(t *testing.T) {
	d := Descriptor{Name: "news"}.Normalize()

	assert.Equal(t, "news-updates", d.Topic())
	assert.Equal(t, "news", d.CollectionKey())
	assert.Equal(t, "news-update-trigger", d.TriggerKey())
	assert.Equal(t, "news-settings", d.AspectKey("settings"))
	assert.Equal(t, "increment_news_views", d.CounterProc())
}

func TestCounterProc_HyphenatedDomain(t *testing.T) {
	d := Descriptor{Name: "dr-ahmed-news"}.Normalize()
	assert.Equal(t, "increment_dr_ahmed_news_views", d.CounterProc())
}

func TestEntitySortKey(t *testing.T) {
	e := Entity{Fields: map[string]any{"date": "2024-06-01"}}
	assert.Equal(t, "2024-06-01", e.SortKey("date"))

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fallback := Entity{CreatedAt: created}
	assert.Equal(t, created.Format(time.RFC3339Nano), fallback.SortKey("date"))

	// ISO date strings order lexicographically, so comparisons against the
	// RFC 3339 fallback stay chronological too.
	assert.Greater(t, e.SortKey("date"), fallback.SortKey("date"))
}

func TestEntityTouch(t *testing.T) {
	var e Entity
	e.Touch()
	assert.False(t, e.CreatedAt.IsZero())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	created := e.CreatedAt
	time.Sleep(time.Millisecond)
	e.Touch()
	assert.Equal(t, created, e.CreatedAt)
	assert.True(t, e.UpdatedAt.After(created))
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(ErrEntityNotFound, ErrCodeNotFound))
	assert.False(t, IsDomainError(ErrEntityNotFound, ErrCodeInvalid))
	assert.False(t, IsDomainError(nil, ErrCodeNotFound))

	wrapped := WrapError(ErrCodeUnavailable, "remote list failed", ErrRemoteUnavailable)
	assert.True(t, IsDomainError(wrapped, ErrCodeUnavailable))
}

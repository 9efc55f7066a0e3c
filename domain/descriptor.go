package domain

import "strings"

// Descriptor names the storage and broadcast surfaces for one content domain.
// One Descriptor replaces what used to be a hand-written service object per
// content type.
type Descriptor struct {
	Name         string // cache key prefix and broadcast namespace, e.g. "news"
	Table        string // remote table name
	SortField    string // entity field used for the default descending sort
	CounterField string // numeric column incremented server-side
	MediaBucket  string // object storage bucket for this domain's media
}

// Normalize fills derivable zero fields so callers can configure domains with
// just a name.
func (d Descriptor) Normalize() Descriptor {
	if d.Table == "" {
		d.Table = strings.ReplaceAll(d.Name, "-", "_")
	}
	if d.SortField == "" {
		d.SortField = "date"
	}
	if d.CounterField == "" {
		d.CounterField = "views"
	}
	if d.MediaBucket == "" {
		d.MediaBucket = d.Name + "-media"
	}
	return d
}

// Topic is the broadcast channel for this domain's change events.
func (d Descriptor) Topic() string { return d.Name + "-updates" }

// CollectionKey is the cache key holding the full entity collection.
func (d Descriptor) CollectionKey() string { return d.Name }

// TriggerKey is the cache key written solely to produce an observable
// mutation for pollers that do not subscribe to the broadcast topic.
func (d Descriptor) TriggerKey() string { return d.Name + "-update-trigger" }

// AspectKey addresses auxiliary per-domain data such as settings.
func (d Descriptor) AspectKey(aspect string) string { return d.Name + "-" + aspect }

// CounterProc is the stored procedure performing the atomic counter
// increment, named increment_{domain}_{field}.
func (d Descriptor) CounterProc() string {
	return "increment_" + strings.ReplaceAll(d.Name, "-", "_") + "_" + d.CounterField
}

// DefaultDescriptors returns the content domains the site ships with.
func DefaultDescriptors() []Descriptor {
	names := []string{"news", "dr-ahmed-news", "achievements", "media-coverage"}
	out := make([]Descriptor, 0, len(names))
	for _, n := range names {
		out = append(out, Descriptor{Name: n}.Normalize())
	}
	return out
}

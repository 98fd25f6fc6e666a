// Package reconcile decides whether a scraped record is new, an update of a
// stored record, or a no-op, keyed by business key across every partition.
package reconcile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
)

// ErrKeyCollision is two different source URLs resolving to one key in a run.
var ErrKeyCollision = errors.New("business key collision")

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

type entry struct {
	partition product.Category
	position  int
	record    product.Record
}

// Index maps business keys to their stored location. It is built once per run
// and mutated in place by Apply; it is not safe for concurrent use.
type Index struct {
	byKey      map[string]*entry
	bySlug     map[string]string
	partitions map[product.Category][]product.Record
	claimed    map[string]string
	duplicates int
	log        *logger.Logger
}

// Build indexes every partition. Categories are visited in rank order, so when
// a key appears twice the first partition keeps it and the rest are reported.
func Build(partitions map[product.Category][]product.Record, log *logger.Logger) *Index {
	if log == nil {
		log = logger.New("Reconcile")
	}
	ix := &Index{
		byKey:      map[string]*entry{},
		bySlug:     map[string]string{},
		partitions: map[product.Category][]product.Record{},
		claimed:    map[string]string{},
		log:        log,
	}

	cats := make([]product.Category, 0, len(partitions))
	for c := range partitions {
		cats = append(cats, c)
	}
	sort.SliceStable(cats, func(i, j int) bool {
		if cats[i].Rank() != cats[j].Rank() {
			return cats[i].Rank() < cats[j].Rank()
		}
		return cats[i] < cats[j]
	})

	for _, cat := range cats {
		records := make([]product.Record, len(partitions[cat]))
		for i, r := range partitions[cat] {
			r = r.Clone().Normalized()
			if r.BusinessKey == "" {
				r.BusinessKey = product.BusinessKey(r.ProductCode, r.URL)
			}
			records[i] = r
			if r.BusinessKey == "" {
				log.Warn().Str("partition", string(cat)).Int("position", i).Str("name", r.Name).Msg("stored record has no derivable key")
				continue
			}
			if prev, dup := ix.byKey[r.BusinessKey]; dup {
				ix.duplicates++
				log.Warn().
					Str("key", r.BusinessKey).
					Str("kept", fmt.Sprintf("%s[%d]", prev.partition, prev.position)).
					Str("duplicate", fmt.Sprintf("%s[%d]", cat, i)).
					Msg("integrity: duplicate business key across partitions")
				continue
			}
			ix.byKey[r.BusinessKey] = &entry{partition: cat, position: i, record: r}
			if slug := product.SlugFromURL(r.URL); slug != "" {
				if _, taken := ix.bySlug[slug]; !taken {
					ix.bySlug[slug] = r.BusinessKey
				}
			}
		}
		ix.partitions[cat] = records
	}
	return ix
}

// Len is the number of indexed keys.
func (ix *Index) Len() int { return len(ix.byKey) }

// Duplicates is the number of duplicate keys found while building.
func (ix *Index) Duplicates() int { return ix.duplicates }

// Partition returns a copy of a partition's current records.
func (ix *Index) Partition(cat product.Category) []product.Record {
	src := ix.partitions[cat]
	out := make([]product.Record, len(src))
	copy(out, src)
	return out
}

// Partitions lists the categories the index holds records for.
func (ix *Index) Partitions() []product.Category {
	out := make([]product.Category, 0, len(ix.partitions))
	for _, c := range product.Categories {
		if _, ok := ix.partitions[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the stored record for key.
func (ix *Index) Get(key string) (product.Record, product.Category, bool) {
	e, ok := ix.byKey[key]
	if !ok {
		return product.Record{}, "", false
	}
	return e.record.Clone(), e.partition, true
}

// lookup resolves a record by its key, then by its URL slug so that a record
// first stored under a slug key is still found once a product code appears.
func (ix *Index) lookup(rec product.Record) (string, *entry) {
	if e, ok := ix.byKey[rec.BusinessKey]; ok {
		return rec.BusinessKey, e
	}
	if slug := product.SlugFromURL(rec.URL); slug != "" {
		if key, ok := ix.bySlug[slug]; ok {
			return key, ix.byKey[key]
		}
	}
	return rec.BusinessKey, nil
}

// Decision is the outcome of reconciling one record.
type Decision struct {
	Action    Action
	Partition product.Category
	Key       string
	Record    product.Record
	Diff      string
}

// Reconcile decides insert, update or skip for rec without mutating the index.
// A second URL claiming a key already claimed this run yields ErrKeyCollision.
func (ix *Index) Reconcile(rec product.Record) (Decision, error) {
	if rec.BusinessKey == "" {
		rec.BusinessKey = product.BusinessKey(rec.ProductCode, rec.URL)
	}
	if rec.BusinessKey == "" {
		return Decision{}, fmt.Errorf("record %q has no business key", rec.Name)
	}

	key, e := ix.lookup(rec)
	if url, ok := ix.claimed[key]; ok && url != rec.URL {
		ix.log.Error().
			Str("key", key).
			Str("first_url", url).
			Str("second_url", rec.URL).
			Msg("integrity: two source URLs resolve to the same business key")
		return Decision{}, fmt.Errorf("%s claimed by %s and %s: %w", key, url, rec.URL, ErrKeyCollision)
	}
	ix.claimed[key] = rec.URL

	if e == nil {
		rec.Category = Classify(rec.Name, rec.Category)
		rec = rec.Normalized()
		return Decision{Action: ActionInsert, Partition: rec.Category, Key: key, Record: rec}, nil
	}

	merged, err := Merge(e.record, rec)
	if err != nil {
		return Decision{}, err
	}
	if cmp.Equal(e.record, merged, cmpopts.EquateEmpty()) {
		return Decision{Action: ActionSkip, Partition: e.partition, Key: key, Record: e.record.Clone()}, nil
	}
	return Decision{
		Action:    ActionUpdate,
		Partition: e.partition,
		Key:       key,
		Record:    merged,
		Diff:      cmp.Diff(e.record, merged, cmpopts.EquateEmpty()),
	}, nil
}

// Apply commits a decision to the index and reports whether the partition changed.
func (ix *Index) Apply(d Decision) bool {
	switch d.Action {
	case ActionInsert:
		records := ix.partitions[d.Partition]
		e := &entry{partition: d.Partition, position: len(records), record: d.Record.Clone()}
		ix.partitions[d.Partition] = append(records, e.record)
		ix.byKey[d.Key] = e
		if slug := product.SlugFromURL(d.Record.URL); slug != "" {
			if _, taken := ix.bySlug[slug]; !taken {
				ix.bySlug[slug] = d.Key
			}
		}
		return true
	case ActionUpdate:
		e, ok := ix.byKey[d.Key]
		if !ok {
			return false
		}
		e.record = d.Record.Clone()
		ix.partitions[e.partition][e.position] = e.record
		return true
	}
	return false
}

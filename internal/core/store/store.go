// Package store persists one JSON array file per category partition and the
// derived all-products aggregate.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
)

// AggregateName is the derived file regenerated after every partition write.
const AggregateName = "all-products"

var ErrAggregateWrite = errors.New("aggregate file is derived and cannot be written directly")

const backupStamp = "20060102-150405.000"

type Store struct {
	mu        sync.Mutex
	dataDir   string
	backupDir string
	now       func() time.Time
	log       *logger.Logger
}

func New(dataDir, backupDir string, log *logger.Logger) *Store {
	if log == nil {
		log = logger.New("Store")
	}
	if backupDir == "" {
		backupDir = filepath.Join(dataDir, "backups")
	}
	return &Store{dataDir: dataDir, backupDir: backupDir, now: time.Now, log: log}
}

// WithClock overrides the backup timestamp clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Path(partition product.Category) string {
	return filepath.Join(s.dataDir, string(partition)+".json")
}

func (s *Store) AggregatePath() string {
	return filepath.Join(s.dataDir, AggregateName+".json")
}

func (s *Store) BackupDir() string { return s.backupDir }

// Read loads a partition. A missing file is an empty partition.
func (s *Store) Read(partition product.Category) ([]product.Record, error) {
	return readFile(s.Path(partition))
}

// ReadAll loads every known partition.
func (s *Store) ReadAll() (map[product.Category][]product.Record, error) {
	out := make(map[product.Category][]product.Record, len(product.Categories))
	for _, c := range product.Categories {
		recs, err := s.Read(c)
		if err != nil {
			return nil, err
		}
		out[c] = recs
	}
	return out, nil
}

// ReadAggregate loads the derived all-products file.
func (s *Store) ReadAggregate() ([]product.Record, error) {
	return readFile(s.AggregatePath())
}

func readFile(path string) ([]product.Record, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []product.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []product.Record{}, nil
	}
	var recs []product.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for i := range recs {
		recs[i] = recs[i].Normalized()
	}
	return recs, nil
}

// Write replaces a partition file. The existing file is backed up first and the
// write aborts if that fails; the new content lands through a temp file and
// rename, so a failed write leaves the previous file intact. The aggregate is
// regenerated afterwards.
func (s *Store) Write(partition product.Category, records []product.Record) error {
	if string(partition) == AggregateName {
		return ErrAggregateWrite
	}
	if _, err := product.ParseCategory(string(partition)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	backup, err := s.backup(partition)
	if err != nil {
		return fmt.Errorf("backup %s: %w", partition, err)
	}

	data, err := encode(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", partition, err)
	}
	if err := atomicWrite(s.Path(partition), data); err != nil {
		return fmt.Errorf("write %s: %w", partition, err)
	}
	s.log.Info().Str("partition", string(partition)).Int("records", len(records)).Str("backup", backup).Msg("partition written")

	if _, err := s.rebuild(); err != nil {
		return fmt.Errorf("rebuild aggregate: %w", err)
	}
	return nil
}

// backup copies the current partition file into the backup directory under a
// millisecond timestamp, bumping the stamp until the name is unused.
func (s *Store) backup(partition product.Category) (string, error) {
	src, err := os.ReadFile(s.Path(partition))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", err
	}
	ts := s.now()
	for i := 0; i < 1000; i++ {
		name := filepath.Join(s.backupDir, fmt.Sprintf("%s.%s.json", partition, ts.Format(backupStamp)))
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			ts = ts.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(src); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return "", err
		}
		return name, f.Close()
	}
	return "", fmt.Errorf("no free backup name for %s", partition)
}

// Rebuild regenerates the aggregate from the partition files.
func (s *Store) Rebuild() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuild()
}

func (s *Store) rebuild() (int, error) {
	type ranked struct {
		rank int
		rec  product.Record
	}
	var all []ranked
	for i, c := range product.Categories {
		recs, err := s.Read(c)
		if err != nil {
			return 0, err
		}
		for _, r := range recs {
			all = append(all, ranked{rank: i, rec: r})
		}
	}

	col := collate.New(language.TraditionalChinese)
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		if c := col.CompareString(a.rec.Name, b.rec.Name); c != 0 {
			return c < 0
		}
		return a.rec.BusinessKey < b.rec.BusinessKey
	})

	out := make([]product.Record, len(all))
	for i, r := range all {
		out[i] = r.rec
	}
	data, err := encode(out)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return 0, err
	}
	if err := atomicWrite(s.AggregatePath(), data); err != nil {
		return 0, err
	}
	s.log.Debug().Int("records", len(out)).Msg("aggregate rebuilt")
	return len(out), nil
}

// Backups lists backup files of a partition, oldest first.
func (s *Store) Backups(partition product.Category) ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prefix := string(partition) + "."
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".json") {
			out = append(out, filepath.Join(s.backupDir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func encode(records []product.Record) ([]byte, error) {
	norm := make([]product.Record, len(records))
	for i, r := range records {
		norm[i] = r.Normalized()
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(norm); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	cleanup := func() { _ = os.Remove(name) }

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(name, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

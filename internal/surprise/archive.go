package surprise

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"manifold/internal/vectormemory"
)

// ArchiveConfig bundles the archival worker's retention and file tunables.
type ArchiveConfig struct {
	Root             string
	RetainMostRecent int
	RetainNewerThan  time.Duration
	MaxFileBytes     int64
}

// archivedRecord is the on-disk shape for one archived memory. Binary
// embedding bytes are base64-encoded behind an explicit _binary marker so a
// human skimming an archive file can tell embedded binary data from plain
// text fields.
type archivedRecord struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding binaryField       `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
	StoredAt  int64             `json:"stored_at"`
}

type binaryField struct {
	Binary bool   `json:"_binary"`
	Data   string `json:"data"`
}

func encodeEmbedding(embedding []float32) binaryField {
	buf := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return binaryField{Binary: true, Data: base64.StdEncoding.EncodeToString(buf)}
}

func decodeEmbedding(f binaryField) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

// ArchivePath returns the monthly-partitioned path for a given day:
// YYYY-MM/memories-YYYYMMDD.json under the archive root.
func ArchivePath(root string, day time.Time) string {
	month := day.Format("2006-01")
	file := fmt.Sprintf("memories-%s.json", day.Format("20060102"))
	return filepath.Join(root, month, file)
}

// ArchivalWorker scans the raw mirror for records eligible for cold storage
// and moves them to dated JSON files on disk. It holds the MirroredStore
// rather than just the RawMirror so that once a day's file is safely
// written, the source record is deleted from both the raw mirror and the
// Qdrant ANN index; a record archival doesn't shrink the live store would
// stay searchable and listable forever.
type ArchivalWorker struct {
	store *vectormemory.MirroredStore
	cfg   ArchiveConfig

	// runMu serializes archival passes: the daily schedule and the admin
	// endpoint may both trigger one, and write-then-delete is only safe when
	// a single pass owns the candidate set.
	runMu sync.Mutex
}

func NewArchivalWorker(store *vectormemory.MirroredStore, cfg ArchiveConfig) *ArchivalWorker {
	if cfg.RetainMostRecent <= 0 {
		cfg.RetainMostRecent = 500
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 50 * 1024 * 1024
	}
	return &ArchivalWorker{store: store, cfg: cfg}
}

type candidate struct {
	id       string
	rec      vectormemory.Record
	storedAt int64
}

// ArchiveResult reports what a single archival pass did.
type ArchiveResult struct {
	Archived     int
	KeptInRedis  int
	FilesCreated int
}

// ArchiveOldMemories retains the most recent RetainMostRecent records, and
// anything newer than RetainNewerThan, archiving everything else to disk.
// Only one pass runs at a time; a concurrent call blocks until the running
// pass finishes.
func (a *ArchivalWorker) ArchiveOldMemories(ctx context.Context, now time.Time) (ArchiveResult, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	ids, err := a.store.Mirror().Keys(ctx)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("surprise: list memory keys: %w", err)
	}

	var candidates []candidate
	for _, id := range ids {
		rec, storedAt, err := a.store.Mirror().Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("id", id).Msg("surprise: skipping unreadable memory during archival")
			continue
		}
		candidates = append(candidates, candidate{id: id, rec: rec, storedAt: storedAt})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].storedAt > candidates[j].storedAt })

	cutoff := now.Add(-a.cfg.RetainNewerThan).Unix()
	kept := 0
	byDay := make(map[string][]candidate)
	for i, c := range candidates {
		if i < a.cfg.RetainMostRecent || c.storedAt >= cutoff {
			kept++
			continue // kept hot
		}
		day := time.Unix(c.storedAt, 0).UTC().Format("20060102")
		byDay[day] = append(byDay[day], c)
	}

	result := ArchiveResult{KeptInRedis: kept}
	for day, group := range byDay {
		dayTime, _ := time.Parse("20060102", day)
		if err := a.archiveGroup(ctx, dayTime, group); err != nil {
			return result, err
		}
		result.Archived += len(group)
		result.FilesCreated++
	}
	return result, nil
}

// archiveGroup writes one day's worth of candidates via
// write-to-temp-then-rename, deleting each source record only after
// confirming the archive file exists. Write-then-delete, never the reverse:
// a crash mid-pass leaves duplicates, not losses.
func (a *ArchivalWorker) archiveGroup(ctx context.Context, day time.Time, group []candidate) error {
	path := ArchivePath(a.cfg.Root, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("surprise: mkdir archive dir: %w", err)
	}

	var existing []archivedRecord
	if raw, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(raw, &existing)
	}
	for _, c := range group {
		existing = append(existing, archivedRecord{
			ID:        c.id,
			Text:      c.rec.Text,
			Embedding: encodeEmbedding(c.rec.Embedding),
			Metadata:  c.rec.Metadata,
			StoredAt:  c.storedAt,
		})
	}

	payload, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("surprise: marshal archive: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("surprise: write temp archive: %w", err)
	}
	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		os.Remove(tmp)
		return fmt.Errorf("surprise: temp archive file empty or missing, aborting")
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("surprise: rename temp archive: %w", err)
	}

	for _, c := range group {
		if _, err := os.Stat(path); err != nil {
			log.Error().Str("id", c.id).Msg("surprise: archive file vanished before delete, keeping source record")
			continue
		}
		// Re-check existence right before deleting: an admin delete may have
		// raced this pass, and deleting an already-deleted id must not error
		// the whole run.
		if _, _, err := a.store.Mirror().Get(ctx, c.id); err != nil {
			log.Warn().Str("id", c.id).Msg("surprise: record vanished before archival delete, skipping")
			continue
		}
		if err := a.store.Delete(ctx, c.id); err != nil {
			log.Error().Err(err).Str("id", c.id).Msg("surprise: failed to delete archived source record")
		}
	}
	return nil
}

// SearchArchive scans archive files for text matches, capping the amount of
// any single file it reads into memory at MaxFileBytes.
func (a *ArchivalWorker) SearchArchive(query string) ([]vectormemory.Record, error) {
	var matches []vectormemory.Record
	err := filepath.Walk(a.cfg.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		if info.Size() > a.cfg.MaxFileBytes {
			log.Warn().Str("path", path).Int64("size", info.Size()).Msg("surprise: archive file exceeds size cap, skipping")
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()
		raw, err := io.ReadAll(io.LimitReader(f, a.cfg.MaxFileBytes))
		if err != nil {
			return nil
		}
		var records []archivedRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil
		}
		for _, r := range records {
			if containsFold(r.Text, query) {
				embedding, _ := decodeEmbedding(r.Embedding)
				matches = append(matches, vectormemory.Record{ID: r.ID, Text: r.Text, Embedding: embedding, Metadata: r.Metadata})
			}
		}
		return nil
	})
	return matches, err
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// Restore decodes a single archived record back into a vectormemory.Record,
// the inverse of archiveGroup's encoding.
func Restore(rec archivedRecord) (vectormemory.Record, error) {
	embedding, err := decodeEmbedding(rec.Embedding)
	if err != nil {
		return vectormemory.Record{}, err
	}
	return vectormemory.Record{ID: rec.ID, Text: rec.Text, Embedding: embedding, Metadata: rec.Metadata}, nil
}

// ArchiveStats summarizes what's on disk in the cold tier, the data behind
// the admin archive-stats endpoint.
type ArchiveStats struct {
	TotalFiles           int
	TotalArchivedRecords int
	OldestDay            string
	NewestDay            string
}

var archiveFileDayRe = func(name string) (string, bool) {
	const prefix, suffix = "memories-", ".json"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix), true
}

// Stats walks the archive root and reports how much has been cold-stored,
// without loading record payloads beyond what's needed to count them.
func (a *ArchivalWorker) Stats() (ArchiveStats, error) {
	var stats ArchiveStats
	err := filepath.Walk(a.cfg.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		day, ok := archiveFileDayRe(filepath.Base(path))
		if !ok {
			return nil
		}
		stats.TotalFiles++
		if stats.OldestDay == "" || day < stats.OldestDay {
			stats.OldestDay = day
		}
		if stats.NewestDay == "" || day > stats.NewestDay {
			stats.NewestDay = day
		}
		if info.Size() > a.cfg.MaxFileBytes {
			log.Warn().Str("path", path).Int64("size", info.Size()).Msg("surprise: archive file exceeds size cap, counting file but skipping record scan")
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var records []archivedRecord
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil
		}
		stats.TotalArchivedRecords += len(records)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return stats, err
	}
	return stats, nil
}

// Putter receives restored records; in production this is the MirroredStore,
// so a restored record lands back in both the ANN index and the raw mirror.
type Putter interface {
	Put(ctx context.Context, rec vectormemory.Record) error
}

// RestoreRange reinstates every archived record whose day falls within
// [from, to] (inclusive, UTC) back into dest, returning the count restored.
// Archive files are left untouched; restoration is additive, not a move.
func (a *ArchivalWorker) RestoreRange(ctx context.Context, from, to time.Time, dest Putter) (restored int, err error) {
	fromDay := from.UTC().Format("20060102")
	toDay := to.UTC().Format("20060102")

	walkErr := filepath.Walk(a.cfg.Root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		day, ok := archiveFileDayRe(filepath.Base(path))
		if !ok || day < fromDay || day > toDay {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("surprise: read archive file %s: %w", path, readErr)
		}
		var records []archivedRecord
		if unmarshalErr := json.Unmarshal(raw, &records); unmarshalErr != nil {
			return fmt.Errorf("surprise: decode archive file %s: %w", path, unmarshalErr)
		}
		for _, r := range records {
			rec, decodeErr := Restore(r)
			if decodeErr != nil {
				log.Warn().Err(decodeErr).Str("id", r.ID).Msg("surprise: skipping undecodable archived record during restore")
				continue
			}
			if putErr := dest.Put(ctx, rec); putErr != nil {
				return fmt.Errorf("surprise: restore %s: %w", r.ID, putErr)
			}
			restored++
		}
		return nil
	})
	if walkErr != nil {
		return restored, walkErr
	}
	return restored, nil
}

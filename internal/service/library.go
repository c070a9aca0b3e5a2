package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	"github.com/sourcegraph/conc/pool"

	"github.com/d3v1l1989/embywatch/internal/classify"
	"github.com/d3v1l1989/embywatch/internal/config"
	"github.com/d3v1l1989/embywatch/internal/domain"
	"github.com/d3v1l1989/embywatch/internal/telemetry"
)

const (
	defaultCacheTTL  = 900 * time.Second
	countConcurrency = 4 // Parallel /Items requests per refresh
)

// LibraryOptions configures a LibraryService
type LibraryOptions struct {
	TTL      time.Duration
	Sections config.SectionsConfig
}

// LibraryService serves per-library statistics from a TTL cache.
// The cache is replaced wholesale on a successful fetch and left untouched
// on failure, so callers always get the last good snapshot.
type LibraryService struct {
	client     domain.MediaServerClient
	session    *SessionService
	classifier *classify.Classifier
	store      domain.Store
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex // Held for the whole refresh so concurrent callers share one fetch
	ttl         time.Duration
	sections    config.SectionsConfig
	fingerprint string // sections.Fingerprint()
	entry       domain.CacheEntry
}

// NewLibraryService creates a new library service, seeded from the store
// when it holds a previous snapshot
func NewLibraryService(client domain.MediaServerClient, session *SessionService, classifier *classify.Classifier, store domain.Store, opts LibraryOptions, logger *slog.Logger) *LibraryService {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = classify.New()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	s := &LibraryService{
		client:      client,
		session:     session,
		classifier:  classifier,
		store:       store,
		logger:      logger,
		now:         time.Now,
		ttl:         ttl,
		sections:    opts.Sections,
		fingerprint: opts.Sections.Fingerprint(),
	}

	if store != nil {
		if entry, ok := store.GetLibrarySnapshot(); ok {
			// Built under other section settings: keep it as fallback only
			if entry.Sections != s.fingerprint {
				logger.Info("section settings changed, library snapshot will be refetched")
				entry.FetchedAt = time.Time{}
			}
			s.entry = entry
			logger.Debug("restored library snapshot", "libraries", len(entry.Snapshot), "fetched_at", entry.FetchedAt)
		}
	}

	return s
}

// LibraryStats returns the library snapshot. The snapshot is always usable
// (possibly empty); a non-nil error means it is stale.
func (s *LibraryService) LibraryStats(ctx context.Context) (domain.LibrarySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry.Fresh(s.now(), s.ttl) {
		telemetry.RecordCacheLookup("hit")
		return s.entry.Snapshot.Clone(), nil
	}

	snapshot, err := Do(ctx, s.session, func(cred domain.Credential) (domain.LibrarySnapshot, error) {
		return s.fetch(ctx, cred)
	})
	if err != nil {
		telemetry.RecordCacheLookup("stale")
		s.logger.Warn("library stats refresh failed, serving previous snapshot",
			"error", err,
			"fetched_at", s.entry.FetchedAt,
		)
		return s.entry.Snapshot.Clone(), fmt.Errorf("refresh library stats: %w", err)
	}

	telemetry.RecordCacheLookup("miss")
	s.entry = domain.CacheEntry{Snapshot: snapshot, FetchedAt: s.now(), Sections: s.fingerprint}
	if s.store != nil {
		if err := s.store.SaveLibrarySnapshot(s.entry); err != nil {
			s.logger.Warn("failed to persist library snapshot", "error", err)
		}
	}
	for _, stats := range snapshot {
		telemetry.SetLibraryItems(stats.DisplayName, stats.ItemCount)
	}

	return snapshot.Clone(), nil
}

// Cached returns the current snapshot without touching the network
func (s *LibraryService) Cached() domain.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CacheEntry{Snapshot: s.entry.Snapshot.Clone(), FetchedAt: s.entry.FetchedAt, Sections: s.entry.Sections}
}

// Invalidate forces the next LibraryStats call to refetch
func (s *LibraryService) Invalidate() {
	s.mu.Lock()
	s.entry.FetchedAt = time.Time{}
	s.mu.Unlock()
}

// SetSections replaces the section overrides. The cache is invalidated
// when the settings differ from the ones the snapshot was built under.
func (s *LibraryService) SetSections(sections config.SectionsConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = sections
	s.fingerprint = sections.Fingerprint()
	if s.entry.Sections != s.fingerprint {
		s.entry.FetchedAt = time.Time{}
	}
}

func (s *LibraryService) fetch(ctx context.Context, cred domain.Credential) (domain.LibrarySnapshot, error) {
	libs, err := s.client.FetchLibraries(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("fetch libraries: %w", err)
	}

	selected := s.selectLibraries(libs)

	// Any failed library fails the whole refresh
	p := pool.NewWithResults[domain.LibraryStats]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(countConcurrency)
	for _, lib := range selected {
		p.Go(func(ctx context.Context) (domain.LibraryStats, error) {
			counts, err := s.client.FetchItemCounts(ctx, cred, lib.ID)
			if err != nil {
				return domain.LibraryStats{}, fmt.Errorf("fetch items for %q: %w", lib.Name, err)
			}
			return s.buildStats(lib, counts), nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	snapshot := make(domain.LibrarySnapshot, len(results))
	for _, stats := range results {
		s.logger.Debug("library counted",
			"library", stats.Name,
			"movies", stats.MovieCount,
			"series", stats.SeriesCount,
		)
		snapshot[stats.LibraryID] = stats
	}
	return snapshot, nil
}

// selectLibraries applies show_all and warns about configured sections the
// server does not have
func (s *LibraryService) selectLibraries(libs []domain.Library) []domain.Library {
	if s.sections.ShowAll {
		return libs
	}

	selected := make([]domain.Library, 0, len(libs))
	seen := make(map[string]bool, len(libs)*2)
	names := make([]string, 0, len(libs))
	for _, lib := range libs {
		names = append(names, lib.Name)
		if _, ok := s.sections.Lookup(lib.ID, lib.Name); ok {
			selected = append(selected, lib)
			seen[strings.ToLower(lib.ID)] = true
			seen[strings.ToLower(lib.Name)] = true
		}
	}

	for key := range s.sections.Sections {
		if seen[key] {
			continue
		}
		attrs := []any{"section", key}
		if matches := fuzzy.Find(key, names); len(matches) > 0 {
			attrs = append(attrs, "did_you_mean", matches[0].Str)
		}
		s.logger.Warn("configured section not found on server", attrs...)
	}

	return selected
}

func (s *LibraryService) buildStats(lib domain.Library, counts domain.ItemCounts) domain.LibraryStats {
	sc, _ := s.sections.Lookup(lib.ID, lib.Name)

	stats := domain.LibraryStats{
		LibraryID:    lib.ID,
		Name:         lib.Name,
		DisplayName:  lib.Name,
		Emoji:        sc.Emoji,
		Color:        sc.Color,
		ItemCount:    counts.Movies + counts.Series,
		MovieCount:   counts.Movies,
		SeriesCount:  counts.Series,
		ShowEpisodes: sc.ShowEpisodes,
	}
	if sc.DisplayName != "" {
		stats.DisplayName = sc.DisplayName
	}
	if stats.Emoji == "" {
		stats.Emoji = s.classifier.Classify(lib.Name)
	}
	if sc.ShowEpisodes {
		episodes := counts.Episodes
		stats.EpisodeCount = &episodes
	}
	return stats
}

// SyncSections builds a sections block from the server's libraries, with
// classifier emojis, and turns show_all off. Existing overrides are kept.
func (s *LibraryService) SyncSections(ctx context.Context, keyByName bool) (config.SectionsConfig, error) {
	libs, err := Do(ctx, s.session, func(cred domain.Credential) ([]domain.Library, error) {
		return s.client.FetchLibraries(ctx, cred)
	})
	if err != nil {
		return config.SectionsConfig{}, err
	}

	s.mu.Lock()
	current := s.sections
	s.mu.Unlock()

	out := config.SectionsConfig{
		ShowAll:  false,
		Sections: make(map[string]config.SectionConfig, len(libs)),
	}
	for _, lib := range libs {
		key := lib.ID
		if keyByName {
			key = lib.Name
		}
		sc, ok := current.Lookup(lib.ID, lib.Name)
		if !ok {
			sc = config.SectionConfig{DisplayName: lib.Name}
		}
		if sc.Emoji == "" {
			sc.Emoji = s.classifier.Classify(lib.Name)
		}
		// viper splits keys on dots
		if strings.Contains(key, ".") {
			s.logger.Warn("section key contains a dot and will not load back", "library", lib.Name, "key", key)
		}
		out.Sections[strings.ToLower(key)] = sc
	}
	return out, nil
}

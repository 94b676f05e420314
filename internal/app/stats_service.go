package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"setlist-quiz-service/internal/domain"
)

const (
	topGuessedLimit = 10
	topPlayedLimit  = 10
)

// StatsRepository aggregates over stored submissions.
type StatsRepository interface {
	AnswerDistribution(ctx context.Context, question string) ([]domain.OptionCount, error)
	TopGuessedSongs(ctx context.Context, limit int) ([]domain.SongCount, error)
}

// StatsService serves the setlist trends views. Plays are the surprise songs
// recorded in each show's answer key, joined to the song catalog by title.
type StatsService struct {
	registry   *Registry
	answerKeys AnswerKeyRepository
	stats      StatsRepository
	catalog    []domain.Song
	byTitle    map[string]domain.Song
	now        func() time.Time
}

func NewStatsService(registry *Registry, answerKeys AnswerKeyRepository, stats StatsRepository, catalog []domain.Song) *StatsService {
	return NewStatsServiceWithClock(registry, answerKeys, stats, catalog, time.Now)
}

func NewStatsServiceWithClock(registry *Registry, answerKeys AnswerKeyRepository, stats StatsRepository, catalog []domain.Song, now func() time.Time) *StatsService {
	byTitle := make(map[string]domain.Song, len(catalog))
	for _, song := range catalog {
		byTitle[normalize(song.Title)] = song
	}
	return &StatsService{
		registry:   registry,
		answerKeys: answerKeys,
		stats:      stats,
		catalog:    catalog,
		byTitle:    byTitle,
		now:        now,
	}
}

// AnswerDistribution counts chosen options for one single-choice question.
func (s *StatsService) AnswerDistribution(ctx context.Context, question string) ([]domain.OptionCount, error) {
	if !isSingleChoice(question) {
		return nil, domain.ErrInvalidQuestion
	}
	return s.stats.AnswerDistribution(ctx, question)
}

func (s *StatsService) TopGuessedSongs(ctx context.Context) ([]domain.SongCount, error) {
	return s.stats.TopGuessedSongs(ctx, topGuessedLimit)
}

// MostPlayedSongs ranks catalog songs by how many shows played them.
func (s *StatsService) MostPlayedSongs(ctx context.Context) ([]domain.SongPlays, error) {
	plays, err := s.plays(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, show := range plays {
		for _, title := range show.songs {
			if song, ok := s.byTitle[normalize(title)]; ok {
				counts[normalize(song.Title)]++
			}
		}
	}

	out := []domain.SongPlays{}
	for _, song := range s.catalog {
		if n := counts[normalize(song.Title)]; n > 0 {
			out = append(out, domain.SongPlays{Title: song.Title, Album: song.Album, PlayCount: n})
			// a title listed twice in the catalog is only reported once
			delete(counts, normalize(song.Title))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayCount > out[j].PlayCount })
	if len(out) > topPlayedLimit {
		out = out[:topPlayedLimit]
	}
	return out, nil
}

// AlbumDistribution counts surprise plays per album.
func (s *StatsService) AlbumDistribution(ctx context.Context) ([]domain.AlbumPlays, error) {
	plays, err := s.plays(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	var albums []string
	for _, show := range plays {
		for _, title := range show.songs {
			song, ok := s.byTitle[normalize(title)]
			if !ok {
				continue
			}
			if _, seen := counts[song.Album]; !seen {
				albums = append(albums, song.Album)
			}
			counts[song.Album]++
		}
	}
	out := make([]domain.AlbumPlays, 0, len(albums))
	for _, album := range albums {
		out = append(out, domain.AlbumPlays{Album: album, PlayCount: counts[album]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayCount > out[j].PlayCount })
	return out, nil
}

// Cities lists shows that already happened and have recorded surprise songs.
func (s *StatsService) Cities(ctx context.Context) ([]string, error) {
	plays, err := s.plays(ctx)
	if err != nil {
		return nil, err
	}
	cities := []string{}
	for _, show := range plays {
		if !onOrBeforeToday(show.cfg, s.now()) {
			continue
		}
		cities = append(cities, show.cfg.Slug)
	}
	sort.Strings(cities)
	return cities, nil
}

// SongsByCity returns one show's surprise songs; album is empty for titles outside the catalog.
func (s *StatsService) SongsByCity(ctx context.Context, city string) ([]domain.Song, error) {
	out := []domain.Song{}
	if _, ok := s.registry.Lookup(city); !ok {
		return out, nil
	}
	key, err := s.answerKeys.GetAnswerKey(ctx, city)
	if errors.Is(err, domain.ErrNoAnswerKey) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for _, title := range key.Surprise {
		song := domain.Song{Title: title}
		if known, ok := s.byTitle[normalize(title)]; ok {
			song = known
		}
		out = append(out, song)
	}
	return out, nil
}

// UnplayedSongs lists catalog songs from album that no show has played yet.
func (s *StatsService) UnplayedSongs(ctx context.Context, album string) ([]domain.Song, error) {
	plays, err := s.plays(ctx)
	if err != nil {
		return nil, err
	}
	played := make(map[string]struct{})
	for _, show := range plays {
		for _, title := range show.songs {
			played[normalize(title)] = struct{}{}
		}
	}
	out := []domain.Song{}
	for _, song := range s.catalog {
		if song.Album != album {
			continue
		}
		if _, ok := played[normalize(song.Title)]; ok {
			continue
		}
		out = append(out, song)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

type showPlays struct {
	cfg   domain.QuizConfig
	songs []string
}

// plays collects the surprise songs of every show with a non-empty answer key.
func (s *StatsService) plays(ctx context.Context) ([]showPlays, error) {
	var out []showPlays
	for _, cfg := range s.registry.All() {
		key, err := s.answerKeys.GetAnswerKey(ctx, cfg.Slug)
		if errors.Is(err, domain.ErrNoAnswerKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(key.Surprise) == 0 {
			continue
		}
		out = append(out, showPlays{cfg: cfg, songs: key.Surprise})
	}
	return out, nil
}

func onOrBeforeToday(cfg domain.QuizConfig, now time.Time) bool {
	local := now.In(cfg.Location)
	sy, sm, sd := cfg.Start.Date()
	ny, nm, nd := local.Date()
	show := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return !show.After(today)
}

func isSingleChoice(question string) bool {
	for _, q := range domain.SingleChoiceQuestions {
		if q == question {
			return true
		}
	}
	return false
}

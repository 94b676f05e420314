package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"setlist-quiz-service/internal/app"
	"setlist-quiz-service/internal/domain"
	"setlist-quiz-service/internal/infra/memory"
)

func newStatsService(t *testing.T) (*app.StatsService, *memory.Store) {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	registry, err := app.NewRegistry([]domain.QuizConfig{
		{Slug: "norfolk", QuizID: 1, Start: time.Date(2025, 10, 1, 19, 0, 0, 0, loc), Location: loc},
		{Slug: "atlanta", QuizID: 2, Start: time.Date(2025, 10, 4, 19, 0, 0, 0, loc), Location: loc},
		{Slug: "detroit", QuizID: 3, Start: time.Date(2025, 11, 1, 19, 0, 0, 0, loc), Location: loc},
		{Slug: "boston", QuizID: 4, Start: time.Date(2025, 10, 8, 19, 0, 0, 0, loc), Location: loc},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	keys := memory.NewAnswerKeyRepository(memory.NewStaticAnswerKeyLoader(map[string]domain.AnswerKey{
		"norfolk": {Surprise: []string{"Dizzy", "Violet"}},
		"atlanta": {Surprise: []string{"dizzy ", "Lucky People", "Unreleased Demo"}},
		"detroit": {Surprise: []string{"Peach"}},
		"boston":  {Surprise: []string{}},
	}), time.Minute)

	catalog := []domain.Song{
		{Title: "Dizzy", Album: "Cloud Nine"},
		{Title: "Violet", Album: "Cloud Nine"},
		{Title: "Peach", Album: "Cloud Nine"},
		{Title: "Lucky People", Album: "Night Drive"},
		{Title: "Reboot", Album: "Night Drive"},
		{Title: "Afterglow", Album: "Cloud Nine"},
	}

	store := memory.NewStore()
	now := func() time.Time { return time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC) }
	return app.NewStatsServiceWithClock(registry, keys, store, catalog, now), store
}

func TestMostPlayedAndAlbums(t *testing.T) {
	stats, _ := newStatsService(t)
	ctx := context.Background()

	played, err := stats.MostPlayedSongs(ctx)
	if err != nil {
		t.Fatalf("most played: %v", err)
	}
	if len(played) == 0 {
		t.Fatalf("expected played songs")
	}
	if want := (domain.SongPlays{Title: "Dizzy", Album: "Cloud Nine", PlayCount: 2}); played[0] != want {
		t.Fatalf("expected %+v first, got %+v", want, played[0])
	}

	albums, err := stats.AlbumDistribution(ctx)
	if err != nil {
		t.Fatalf("album distribution: %v", err)
	}
	want := []domain.AlbumPlays{
		{Album: "Cloud Nine", PlayCount: 4},
		{Album: "Night Drive", PlayCount: 1},
	}
	if !reflect.DeepEqual(albums, want) {
		t.Fatalf("expected %+v, got %+v", want, albums)
	}
}

func TestCitiesOnlyPastShowsWithSongs(t *testing.T) {
	stats, _ := newStatsService(t)

	cities, err := stats.Cities(context.Background())
	if err != nil {
		t.Fatalf("cities: %v", err)
	}
	if want := []string{"atlanta", "norfolk"}; !reflect.DeepEqual(cities, want) {
		t.Fatalf("expected %v, got %v", want, cities)
	}
}

func TestSongsByCity(t *testing.T) {
	stats, _ := newStatsService(t)
	ctx := context.Background()

	songs, err := stats.SongsByCity(ctx, "atlanta")
	if err != nil {
		t.Fatalf("songs by city: %v", err)
	}
	if len(songs) != 3 || songs[0].Album != "Cloud Nine" {
		t.Fatalf("unexpected atlanta songs %+v", songs)
	}
	if want := (domain.Song{Title: "Unreleased Demo"}); songs[2] != want {
		t.Fatalf("expected uncatalogued song last, got %+v", songs[2])
	}

	songs, err = stats.SongsByCity(ctx, "atlantis")
	if err != nil || len(songs) != 0 {
		t.Fatalf("expected no songs for unknown city, got %+v err=%v", songs, err)
	}
}

func TestUnplayedSongs(t *testing.T) {
	stats, _ := newStatsService(t)

	songs, err := stats.UnplayedSongs(context.Background(), "Cloud Nine")
	if err != nil {
		t.Fatalf("unplayed: %v", err)
	}
	if want := []domain.Song{{Title: "Afterglow", Album: "Cloud Nine"}}; !reflect.DeepEqual(songs, want) {
		t.Fatalf("expected %+v, got %+v", want, songs)
	}
}

func TestAnswerDistribution(t *testing.T) {
	stats, store := newStatsService(t)
	ctx := context.Background()

	for uid, q1 := range []string{"Peach", "Peach", "Reboot"} {
		if _, err := store.Insert(ctx, domain.Submission{UserID: int64(uid + 1), QuizID: 1, Answers: domain.Answers{Q1: q1}}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	counts, err := stats.AnswerDistribution(ctx, domain.Q1)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if len(counts) != 2 || counts[0] != (domain.OptionCount{Option: "Peach", Count: 2}) {
		t.Fatalf("unexpected distribution %+v", counts)
	}

	if _, err := stats.AnswerDistribution(ctx, domain.Q3); !errors.Is(err, domain.ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion, got %v", err)
	}
}

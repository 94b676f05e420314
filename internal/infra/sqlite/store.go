package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"setlist-quiz-service/internal/domain"
)

// Store is a single-file SQLite implementation of app.SubmissionRepository,
// app.UserRepository and app.StatsRepository.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		path = "quiz.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			quiz_id INTEGER NOT NULL,
			q1 TEXT NOT NULL DEFAULT '',
			q2 TEXT NOT NULL DEFAULT '',
			q3 TEXT NOT NULL DEFAULT '',
			q4 TEXT NOT NULL DEFAULT '',
			q5 TEXT NOT NULL DEFAULT '',
			q6 TEXT NOT NULL DEFAULT '',
			q7 TEXT NOT NULL DEFAULT '',
			submitted_at_unix INTEGER NOT NULL,
			score INTEGER,
			UNIQUE (user_id, quiz_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_quiz_score ON submissions(quiz_id, score);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, quizID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE quiz_id = ? AND user_id = ?)`,
		quizID, userID).Scan(&exists)
	if err != nil {
		return false, domain.StoreError("check submission", err)
	}
	return exists, nil
}

func (s *Store) Insert(ctx context.Context, sub domain.Submission) (int64, error) {
	a := sub.Answers
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (user_id, quiz_id, q1, q2, q3, q4, q5, q6, q7, submitted_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, quiz_id) DO NOTHING`,
		sub.UserID, sub.QuizID, a.Q1, a.Q2, a.Q3, a.Q4, a.Q5, a.Q6, a.Q7, sub.SubmittedAt.UTC().UnixNano())
	if err != nil {
		return 0, domain.StoreError("insert submission", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, domain.StoreError("insert submission", err)
	}
	if n == 0 {
		return 0, domain.ErrAlreadySubmitted
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.StoreError("insert submission", err)
	}
	return id, nil
}

func (s *Store) FetchUnscored(ctx context.Context, quizID int64) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, quiz_id, q1, q2, q3, q4, q5, q6, q7, submitted_at_unix, score
		 FROM submissions WHERE quiz_id = ? AND score IS NULL ORDER BY id`,
		quizID)
	if err != nil {
		return nil, domain.StoreError("fetch unscored", err)
	}
	defer rows.Close()

	out := []domain.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, domain.StoreError("scan submission", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("fetch unscored", err)
	}
	return out, nil
}

func (s *Store) SetScore(ctx context.Context, submissionID int64, score int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET score = ? WHERE id = ?`, score, submissionID)
	if err != nil {
		return domain.StoreError("set score", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, quizID, userID int64) (domain.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, quiz_id, q1, q2, q3, q4, q5, q6, q7, submitted_at_unix, score
		 FROM submissions WHERE quiz_id = ? AND user_id = ?`,
		quizID, userID)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, domain.StoreError("get submission", err)
	}
	return sub, nil
}

// Leaderboard returns scored rows by score desc then earliest submission; limit <= 0 means all.
func (s *Store) Leaderboard(ctx context.Context, quizID int64, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.username, s.score, s.submitted_at_unix
		 FROM submissions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.quiz_id = ? AND s.score IS NOT NULL
		 ORDER BY s.score DESC, s.submitted_at_unix ASC
		 LIMIT ?`,
		quizID, limit)
	if err != nil {
		return nil, domain.StoreError("leaderboard", err)
	}
	defer rows.Close()

	out := []domain.LeaderboardEntry{}
	for rows.Next() {
		var (
			e        domain.LeaderboardEntry
			unixNano int64
		)
		if err := rows.Scan(&e.Username, &e.Score, &unixNano); err != nil {
			return nil, domain.StoreError("scan leaderboard", err)
		}
		e.Timestamp = time.Unix(0, unixNano).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("leaderboard", err)
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password) VALUES (?, ?) ON CONFLICT (username) DO NOTHING`,
		username, passwordHash)
	if err != nil {
		return 0, domain.StoreError("create user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, domain.ErrUsernameTaken
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.StoreError("create user", err)
	}
	return id, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password FROM users WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, domain.StoreError("get user", err)
	}
	return u, nil
}

func (s *Store) AnswerDistribution(ctx context.Context, question string) ([]domain.OptionCount, error) {
	column, err := answerColumn(question)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %[1]s AS option_chosen, COUNT(*) AS option_count
		 FROM submissions
		 WHERE %[1]s <> ''
		 GROUP BY %[1]s
		 ORDER BY option_count DESC, option_chosen ASC`, column))
	if err != nil {
		return nil, domain.StoreError("answer distribution", err)
	}
	defer rows.Close()

	out := []domain.OptionCount{}
	for rows.Next() {
		var c domain.OptionCount
		if err := rows.Scan(&c.Option, &c.Count); err != nil {
			return nil, domain.StoreError("scan distribution", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("answer distribution", err)
	}
	return out, nil
}

func (s *Store) TopGuessedSongs(ctx context.Context, limit int) ([]domain.SongCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guess AS song, COUNT(*) AS count
		 FROM (
		   SELECT q3 AS guess FROM submissions
		   UNION ALL
		   SELECT q4 AS guess FROM submissions
		   UNION ALL
		   SELECT q5 AS guess FROM submissions
		 ) AS all_guesses
		 WHERE guess <> ''
		 GROUP BY guess
		 ORDER BY count DESC, song ASC
		 LIMIT ?`,
		limit)
	if err != nil {
		return nil, domain.StoreError("top guessed songs", err)
	}
	defer rows.Close()

	out := []domain.SongCount{}
	for rows.Next() {
		var c domain.SongCount
		if err := rows.Scan(&c.Song, &c.Count); err != nil {
			return nil, domain.StoreError("scan guessed song", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("top guessed songs", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (domain.Submission, error) {
	var (
		sub      domain.Submission
		unixNano int64
		score    sql.NullInt64
	)
	a := &sub.Answers
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.QuizID,
		&a.Q1, &a.Q2, &a.Q3, &a.Q4, &a.Q5, &a.Q6, &a.Q7,
		&unixNano, &score); err != nil {
		return domain.Submission{}, err
	}
	sub.SubmittedAt = time.Unix(0, unixNano).UTC()
	if score.Valid {
		v := int(score.Int64)
		sub.Score = &v
	}
	return sub, nil
}

func answerColumn(question string) (string, error) {
	switch question {
	case domain.Q1, domain.Q2, domain.Q3, domain.Q4, domain.Q5, domain.Q6, domain.Q7:
		return question, nil
	}
	return "", domain.ErrInvalidQuestion
}

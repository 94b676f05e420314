package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"setlist-quiz-service/internal/domain"
)

// Store implements app.SubmissionRepository, app.UserRepository and
// app.StatsRepository on a pgx pool. The schema comes from the migrations package.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Exists(ctx context.Context, quizID, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM submissions WHERE quiz_id=$1 AND user_id=$2)`,
		quizID, userID).Scan(&exists)
	if err != nil {
		return false, domain.StoreError("check submission", err)
	}
	return exists, nil
}

// Insert relies on the (user_id, quiz_id) unique constraint: a conflicting row
// inserts nothing and returns no id.
func (s *Store) Insert(ctx context.Context, sub domain.Submission) (int64, error) {
	a := sub.Answers
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO submissions (user_id, quiz_id, q1, q2, q3, q4, q5, q6, q7, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id, quiz_id) DO NOTHING
		 RETURNING id`,
		sub.UserID, sub.QuizID, a.Q1, a.Q2, a.Q3, a.Q4, a.Q5, a.Q6, a.Q7, sub.SubmittedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrAlreadySubmitted
	}
	if err != nil {
		return 0, domain.StoreError("insert submission", err)
	}
	return id, nil
}

func (s *Store) FetchUnscored(ctx context.Context, quizID int64) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, quiz_id, q1, q2, q3, q4, q5, q6, q7, timestamp, score
		 FROM submissions WHERE quiz_id=$1 AND score IS NULL ORDER BY id`,
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
	tag, err := s.pool.Exec(ctx, `UPDATE submissions SET score=$1 WHERE id=$2`, score, submissionID)
	if err != nil {
		return domain.StoreError("set score", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, quizID, userID int64) (domain.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, quiz_id, q1, q2, q3, q4, q5, q6, q7, timestamp, score
		 FROM submissions WHERE quiz_id=$1 AND user_id=$2`,
		quizID, userID)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, domain.StoreError("get submission", err)
	}
	return sub, nil
}

// Leaderboard returns scored rows by score desc then earliest timestamp; limit <= 0 means all.
func (s *Store) Leaderboard(ctx context.Context, quizID int64, limit int) ([]domain.LeaderboardEntry, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT u.username, s.score, s.timestamp
		 FROM submissions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.quiz_id = $1 AND s.score IS NOT NULL
		 ORDER BY s.score DESC, s.timestamp ASC
		 LIMIT $2`,
		quizID, lim)
	if err != nil {
		return nil, domain.StoreError("leaderboard", err)
	}
	defer rows.Close()

	out := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Score, &e.Timestamp); err != nil {
			return nil, domain.StoreError("scan leaderboard", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("leaderboard", err)
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING RETURNING id`,
		username, passwordHash).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrUsernameTaken
	}
	if err != nil {
		return 0, domain.StoreError("create user", err)
	}
	return id, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password FROM users WHERE username=$1`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
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
	rows, err := s.pool.Query(ctx,
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
		 LIMIT $1`,
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

func scanSubmission(row pgx.Row) (domain.Submission, error) {
	var (
		sub   domain.Submission
		score *int32
	)
	a := &sub.Answers
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.QuizID,
		&a.Q1, &a.Q2, &a.Q3, &a.Q4, &a.Q5, &a.Q6, &a.Q7,
		&sub.SubmittedAt, &score); err != nil {
		return domain.Submission{}, err
	}
	if score != nil {
		v := int(*score)
		sub.Score = &v
	}
	return sub, nil
}

func answerColumn(question string) (string, error) {
	for _, q := range []string{domain.Q1, domain.Q2, domain.Q3, domain.Q4, domain.Q5, domain.Q6, domain.Q7} {
		if q == question {
			return q, nil
		}
	}
	return "", domain.ErrInvalidQuestion
}

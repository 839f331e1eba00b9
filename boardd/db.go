package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/qadash/qadash/board"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
    question_id INTEGER PRIMARY KEY AUTOINCREMENT,
    message TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending', 'Escalated', 'Answered')),
    created_at TEXT NOT NULL,
    user_id INTEGER REFERENCES users(user_id),
    guest_name TEXT,
    answered_at TEXT,
    answered_by INTEGER REFERENCES users(user_id)
);

CREATE INDEX IF NOT EXISTS idx_questions_status ON questions(status);

CREATE TABLE IF NOT EXISTS responses (
    response_id INTEGER PRIMARY KEY AUTOINCREMENT,
    question_id INTEGER NOT NULL REFERENCES questions(question_id),
    message TEXT NOT NULL,
    created_at TEXT NOT NULL,
    user_id INTEGER REFERENCES users(user_id),
    guest_name TEXT
);

CREATE INDEX IF NOT EXISTS idx_responses_question_id ON responses(question_id);
`

func openDb(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// safe to run multiple times, uses IF NOT EXISTS
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, value)
	return t
}

type user struct {
	UserId       int
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

func getUserByUsername(db *sql.DB, username string) (*user, error) {
	row := db.QueryRow(
		`SELECT user_id, username, email, password_hash, created_at FROM users WHERE username = ?`,
		username,
	)
	var u user
	var createdAt string
	err := row.Scan(&u.UserId, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func getUserByEmail(db *sql.DB, email string) (*user, error) {
	row := db.QueryRow(
		`SELECT user_id, username, email, password_hash, created_at FROM users WHERE email = ?`,
		email,
	)
	var u user
	var createdAt string
	err := row.Scan(&u.UserId, &u.Username, &u.Email, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

func insertUser(db *sql.DB, username string, email string, passwordHash string) (*user, error) {
	createdAt := time.Now()
	result, err := db.Exec(
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, formatTime(createdAt),
	)
	if err != nil {
		return nil, err
	}
	userId, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &user{
		UserId:       int(userId),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

const questionColumns = `
	q.question_id, q.message, q.status, q.created_at, q.guest_name, u.username,
	(SELECT COUNT(*) FROM responses r WHERE r.question_id = q.question_id)
`

func scanQuestion(row interface{ Scan(...any) error }) (*board.Question, error) {
	var q board.Question
	var createdAt string
	var guestName sql.NullString
	var username sql.NullString
	err := row.Scan(&q.QuestionId, &q.Message, &q.Status, &createdAt, &guestName, &username, &q.ResponseCount)
	if err != nil {
		return nil, err
	}
	q.CreatedAt = parseTime(createdAt)
	q.GuestName = guestName.String
	q.Username = username.String
	return &q, nil
}

// ordered the same way the client sorts: escalated first, then pending,
// then answered, newest first within a status
func listQuestions(db *sql.DB, statusFilter string) ([]*board.Question, error) {
	query := `SELECT ` + questionColumns + `
		FROM questions q LEFT JOIN users u ON u.user_id = q.user_id`
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE q.status = ?`
		args = append(args, statusFilter)
	}
	query += `
		ORDER BY
			CASE q.status WHEN 'Escalated' THEN 0 WHEN 'Pending' THEN 1 WHEN 'Answered' THEN 2 ELSE 3 END,
			q.created_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []*board.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func getQuestion(db *sql.DB, questionId int) (*board.Question, error) {
	row := db.QueryRow(
		`SELECT `+questionColumns+`
		FROM questions q LEFT JOIN users u ON u.user_id = q.user_id
		WHERE q.question_id = ?`,
		questionId,
	)
	q, err := scanQuestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func insertQuestion(db *sql.DB, message string, userId *int, guestName string) (*board.Question, error) {
	createdAt := time.Now()
	var guest any
	if guestName != "" {
		guest = guestName
	}
	result, err := db.Exec(
		`INSERT INTO questions (message, status, created_at, user_id, guest_name) VALUES (?, ?, ?, ?, ?)`,
		message, string(board.StatusPending), formatTime(createdAt), userId, guest,
	)
	if err != nil {
		return nil, err
	}
	questionId, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return getQuestion(db, int(questionId))
}

func updateQuestionStatus(db *sql.DB, questionId int, status board.QuestionStatus, answeredBy int) (*board.Question, error) {
	if status == board.StatusAnswered {
		_, err := db.Exec(
			`UPDATE questions SET status = ?, answered_at = ?, answered_by = ? WHERE question_id = ?`,
			string(status), formatTime(time.Now()), answeredBy, questionId,
		)
		if err != nil {
			return nil, err
		}
	} else {
		_, err := db.Exec(
			`UPDATE questions SET status = ? WHERE question_id = ?`,
			string(status), questionId,
		)
		if err != nil {
			return nil, err
		}
	}
	return getQuestion(db, questionId)
}

func listResponses(db *sql.DB, questionId int) ([]*board.Response, error) {
	rows, err := db.Query(
		`SELECT r.response_id, r.question_id, r.message, r.created_at, r.guest_name, u.username
		FROM responses r LEFT JOIN users u ON u.user_id = r.user_id
		WHERE r.question_id = ?
		ORDER BY r.created_at`,
		questionId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	responses := []*board.Response{}
	for rows.Next() {
		var response board.Response
		var createdAt string
		var guestName sql.NullString
		var username sql.NullString
		err := rows.Scan(&response.ResponseId, &response.QuestionId, &response.Message, &createdAt, &guestName, &username)
		if err != nil {
			return nil, err
		}
		response.CreatedAt = parseTime(createdAt)
		response.GuestName = guestName.String
		response.Username = username.String
		responses = append(responses, &response)
	}
	return responses, rows.Err()
}

func insertResponse(db *sql.DB, questionId int, message string, userId *int, guestName string) (*board.Response, error) {
	createdAt := time.Now()
	var guest any
	if guestName != "" {
		guest = guestName
	}
	result, err := db.Exec(
		`INSERT INTO responses (question_id, message, created_at, user_id, guest_name) VALUES (?, ?, ?, ?, ?)`,
		questionId, message, formatTime(createdAt), userId, guest,
	)
	if err != nil {
		return nil, err
	}
	responseId, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	row := db.QueryRow(
		`SELECT r.response_id, r.question_id, r.message, r.created_at, r.guest_name, u.username
		FROM responses r LEFT JOIN users u ON u.user_id = r.user_id
		WHERE r.response_id = ?`,
		responseId,
	)
	var response board.Response
	var createdAtValue string
	var guestNameValue sql.NullString
	var usernameValue sql.NullString
	err = row.Scan(&response.ResponseId, &response.QuestionId, &response.Message, &createdAtValue, &guestNameValue, &usernameValue)
	if err != nil {
		return nil, err
	}
	response.CreatedAt = parseTime(createdAtValue)
	response.GuestName = guestNameValue.String
	response.Username = usernameValue.String
	return &response, nil
}

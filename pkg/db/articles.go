package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/dtnitsch/tadawul-harvest/models"
)

// InsertOutcome reports what InsertIfAbsent did with a record.
type InsertOutcome int

const (
	Inserted InsertOutcome = iota
	Duplicate
)

func (o InsertOutcome) String() string {
	if o == Duplicate {
		return "duplicate"
	}
	return "inserted"
}

// InsertIfAbsent persists the article unless its URL is already recorded.
// The decision rides on the unique index in a single statement, so repeated
// or concurrent calls with the same URL yield exactly one Inserted.
func (db *DB) InsertIfAbsent(a *models.Article) (InsertOutcome, error) {
	result, err := db.Exec(`
		INSERT INTO articles (title, url, company_name, publication_date, article_text, attachments_text, language)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING
	`, a.Title, a.URL, NewNullString(a.CompanyName), NewNullString(a.PublicationDate),
		a.BodyText, a.AttachmentsText, NewNullString(a.Language))
	if err != nil {
		return Duplicate, fmt.Errorf("failed to insert article: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Duplicate, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return Duplicate, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Inserted, fmt.Errorf("failed to get article id: %w", err)
	}
	a.ID = id
	a.Status = models.StatusPending
	return Inserted, nil
}

// HasURL reports whether a record with this URL already exists.
func (db *DB) HasURL(url string) (bool, error) {
	var id int64
	err := db.QueryRow("SELECT id FROM articles WHERE url = ?", url).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check URL: %w", err)
	}
	return true, nil
}

// GetByURL returns the full record for a URL, or sql.ErrNoRows.
func (db *DB) GetByURL(url string) (*models.Article, error) {
	row := db.QueryRow(selectArticle+" WHERE url = ?", url)
	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get article by URL: %w", err)
	}
	return a, nil
}

// FetchPending returns records awaiting analysis, oldest first. A limit of
// zero or less means no limit. This is the analysis reviewer's read path.
func (db *DB) FetchPending(limit int) ([]models.Article, error) {
	query := selectArticle + " WHERE processing_status = ? ORDER BY id"
	args := []any{models.StatusPending}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending article: %w", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending articles: %w", err)
	}
	return articles, nil
}

// MarkProcessed stores the reviewer's verdict and flips the record to
// processed. The status guard makes the pending-to-processed transition
// single-shot: a second call for the same id fails. The crawler never calls
// this; it exists for the external analysis reviewer.
func (db *DB) MarkProcessed(id int64, analysis models.Analysis) error {
	result, err := db.Exec(`
		UPDATE articles
		SET llm_evaluation = ?, llm_reasoning = ?, llm_confidence = ?, llm_full_response = ?, processing_status = ?
		WHERE id = ? AND processing_status = ?
	`, analysis.Evaluation, analysis.Reasoning, analysis.Confidence, NewNullString(analysis.FullResponse),
		models.StatusProcessed, id, models.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark article processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("article %d is not pending", id)
	}
	return nil
}

// CountByStatus returns record counts keyed by processing status.
func (db *DB) CountByStatus() (map[string]int, error) {
	rows, err := db.Query("SELECT processing_status, COUNT(*) FROM articles GROUP BY processing_status")
	if err != nil {
		return nil, fmt.Errorf("failed to count articles: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", err)
	}
	return counts, nil
}

const selectArticle = `
	SELECT id, title, url, company_name, publication_date, scraped_at,
	       article_text, attachments_text, language, processing_status,
	       llm_evaluation, llm_reasoning, llm_confidence, llm_full_response
	FROM articles`

func scanArticle(s interface{ Scan(dest ...any) error }) (*models.Article, error) {
	var (
		a                                   models.Article
		company, pubDate, body, attach      sql.NullString
		language                            sql.NullString
		evaluation, reasoning, fullResponse sql.NullString
		confidence                          sql.NullFloat64
	)
	if err := s.Scan(&a.ID, &a.Title, &a.URL, &company, &pubDate, &a.ScrapedAt,
		&body, &attach, &language, &a.Status,
		&evaluation, &reasoning, &confidence, &fullResponse); err != nil {
		return nil, err
	}

	a.CompanyName = company.String
	a.PublicationDate = pubDate.String
	a.BodyText = body.String
	a.AttachmentsText = attach.String
	a.Language = language.String

	if evaluation.Valid || reasoning.Valid || confidence.Valid || fullResponse.Valid {
		a.Analysis = &models.Analysis{
			Evaluation:   evaluation.String,
			Reasoning:    reasoning.String,
			Confidence:   confidence.Float64,
			FullResponse: fullResponse.String,
		}
	}
	return &a, nil
}

// NewNullString returns a NULL value for empty strings.
func NewNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

-- Articles: one row per harvested announcement, keyed by canonical URL.
-- The analysis reviewer fills the llm_* columns and flips processing_status.
CREATE TABLE IF NOT EXISTS articles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    url TEXT NOT NULL UNIQUE,
    company_name TEXT,
    publication_date TEXT,
    scraped_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    article_text TEXT,
    attachments_text TEXT,
    language TEXT,
    processing_status TEXT NOT NULL DEFAULT 'pending',
    llm_evaluation TEXT,
    llm_reasoning TEXT,
    llm_confidence REAL,
    llm_full_response TEXT
);

CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(processing_status);
CREATE INDEX IF NOT EXISTS idx_articles_scraped_at ON articles(scraped_at);
`

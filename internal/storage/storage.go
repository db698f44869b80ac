package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Forge lifecycle states.
const (
	ForgeStatusActive    = "ACTIVE"
	ForgeStatusArchived  = "ARCHIVED"
	ForgeStatusCompleted = "COMPLETED"
)

// Member roles within a forge.
const (
	MemberRoleOwner  = "owner"
	MemberRoleMember = "member"
)

// Contribution types.
const (
	ContributionTypeUserMessage = "USER_MESSAGE"
	ContributionTypeAIResponse  = "AI_RESPONSE"
	ContributionTypeAISynthesis = "AI_SYNTHESIS"
)

// Prompt lifecycle states.
const (
	PromptStatusActive     = "active"
	PromptStatusInactive   = "inactive"
	PromptStatusDeprecated = "deprecated"
)

type ForgeMember struct {
	UserID string `json:"userId"`
	Role   string `json:"role"` // owner, member
}

type Forge struct {
	ID              string
	Goal            string
	Status          string
	LastSynthesisID *string // Nullable
	Members         []ForgeMember
	CreatedAt       time.Time
}

// SynthesisContent is the structured payload of an AI_SYNTHESIS contribution.
type SynthesisContent struct {
	CurrentState         string   `json:"currentState"`
	EmergingConsensus    string   `json:"emergingConsensus"`
	OutstandingQuestions []string `json:"outstandingQuestions"`
	NextStepsNeeded      string   `json:"nextStepsNeeded"`
}

// ContributionContent is the per-type content variant: user and AI messages
// carry text, syntheses carry the structured payload.
type ContributionContent struct {
	Text       string            `json:"text,omitempty"`
	Structured *SynthesisContent `json:"structured,omitempty"`
}

type Contribution struct {
	ID                    string
	ForgeID               string
	AuthorID              string
	Type                  string
	Content               ContributionContent
	SourceContributionIDs []string
	CreatedAt             time.Time
}

// Text projects the content variant to a single line for model context.
// Syntheses are summarized by their current state.
func (c Contribution) Text() string {
	if c.Type == ContributionTypeAISynthesis && c.Content.Structured != nil {
		return "Current State: " + c.Content.Structured.CurrentState
	}
	return c.Content.Text
}

// ResponseFormat selects structured output mode for a prompt, "text" or "json_object".
type ResponseFormat struct {
	Type string `json:"type"`
}

type PromptParameters struct {
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// AIPrompt is one immutable version of a named prompt. New versions are
// added, never edited in place; the highest active version wins.
type AIPrompt struct {
	ID                 string
	Name               string
	Version            int
	Status             string
	Description        string
	Parameters         PromptParameters
	ExpectedVars       []string
	Template           string
	AssertivenessLevel *int // Synthesis prompts only
	CreatedAt          time.Time
}

type Briefing struct {
	SynthesisID string `json:"synthesisId"`
	RoleID      string `json:"roleId"`
	Briefing    string `json:"briefing"`
}

// StateRole is a participant in the legacy whole-document flow.
type StateRole struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type StateContribution struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	AuthorID    string `json:"authorId"`
	AuthorName  string `json:"authorName"`
	AuthorTitle string `json:"authorTitle"`
	Text        string `json:"text"`
	Role        string `json:"role"`
}

type StateSynthesis struct {
	ID                  string   `json:"id"`
	Content             string   `json:"content"`
	SourceContributions []string `json:"sourceContributions"`
	Timestamp           string   `json:"timestamp"`
}

type ChatMessage struct {
	ID        string `json:"id"`
	Author    string `json:"author"` // user, ai
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type RoleChat struct {
	RoleID          string        `json:"roleId"`
	Messages        []ChatMessage `json:"messages"`
	LastBriefingID  *string       `json:"lastBriefingId"`
}

// StateDocument is the legacy whole-document session state, stored as one
// JSON blob per forge and rewritten wholesale on every change.
type StateDocument struct {
	Goal          string              `json:"goal"`
	Roles         []StateRole         `json:"roles"`
	Contributions []StateContribution `json:"contributions"`
	Syntheses     []StateSynthesis    `json:"syntheses"`
	RoleChats     []RoleChat          `json:"roleChats"`
}

type Storage interface {
	ForgeRepository
	ContributionRepository
	PromptRepository
	BriefingRepository
	StateRepository
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string // Original path without query params
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single connection avoids "database is locked" errors with
	// modernc.org/sqlite even in WAL mode. Write volume here is low.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// The _journal_mode query param doesn't work with modernc.org/sqlite,
	// so set WAL via PRAGMA after opening
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger, dbPath: originalPath}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS forges (
		id TEXT PRIMARY KEY,
		goal TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		last_synthesis_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS forge_members (
		forge_id TEXT NOT NULL REFERENCES forges(id),
		user_id TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (forge_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		forge_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		source_ids TEXT DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_contributions_forge_id ON contributions(forge_id);
	CREATE INDEX IF NOT EXISTS idx_contributions_created_at ON contributions(forge_id, created_at);

	CREATE TABLE IF NOT EXISTS ai_prompts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		description TEXT,
		parameters TEXT NOT NULL,
		expected_vars TEXT DEFAULT '[]',
		template TEXT NOT NULL,
		assertiveness_level INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(name, version)
	);

	CREATE INDEX IF NOT EXISTS idx_ai_prompts_name_status ON ai_prompts(name, status);

	CREATE TABLE IF NOT EXISTS briefings (
		synthesis_id TEXT NOT NULL,
		role_id TEXT NOT NULL,
		briefing TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (synthesis_id, role_id)
	);

	CREATE TABLE IF NOT EXISTS forge_state (
		forge_id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	if err := s.migrate(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

func (s *SQLiteStore) migrate() error {
	// Check if assertiveness_level exists in ai_prompts (added after the
	// first deployed schema)
	var count int
	err := s.db.QueryRow("SELECT count(*) FROM pragma_table_info('ai_prompts') WHERE name='assertiveness_level'").Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		s.logger.Info("migrating ai_prompts table: adding assertiveness_level")
		if _, err := s.db.Exec("ALTER TABLE ai_prompts ADD COLUMN assertiveness_level INTEGER"); err != nil {
			return err
		}
	}

	// Check if source_ids exists in contributions
	err = s.db.QueryRow("SELECT count(*) FROM pragma_table_info('contributions') WHERE name='source_ids'").Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		s.logger.Info("migrating contributions table: adding source_ids")
		if _, err := s.db.Exec("ALTER TABLE contributions ADD COLUMN source_ids TEXT DEFAULT '[]'"); err != nil {
			return err
		}
	}

	return nil
}

// CheckpointResult contains the result of a WAL checkpoint operation.
type CheckpointResult struct {
	Busy         int // 0 = success, 1 = blocked by reader
	Log          int // Total frames in WAL file
	Checkpointed int // Frames actually checkpointed
}

// Checkpoint forces a WAL checkpoint to flush all pending writes to the
// main database file. Called before shutdown to ensure persistence.
func (s *SQLiteStore) Checkpoint() (CheckpointResult, error) {
	var result CheckpointResult
	err := s.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&result.Busy, &result.Log, &result.Checkpointed)
	if err != nil {
		return result, fmt.Errorf("checkpoint query failed: %w", err)
	}

	s.logger.Info("WAL checkpoint result",
		"busy", result.Busy,
		"log_frames", result.Log,
		"checkpointed_frames", result.Checkpointed,
	)

	if result.Busy != 0 {
		return result, fmt.Errorf("checkpoint blocked by reader (busy=%d)", result.Busy)
	}
	if result.Log > 0 && result.Checkpointed < result.Log {
		return result, fmt.Errorf("incomplete checkpoint: %d/%d frames", result.Checkpointed, result.Log)
	}
	return result, nil
}

// Ping reports database reachability for health checks.
func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Close() error {
	if _, err := s.Checkpoint(); err != nil {
		s.logger.Warn("failed to checkpoint WAL before close", "error", err)
	}
	return s.db.Close()
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/eike-heimpel/forge/internal/config"
	"github.com/eike-heimpel/forge/internal/storage"
)

// seedprompts sets up the prompt table. It is run manually, not by the
// service itself. Existing prompts are skipped unless -force clears the
// table first.

func intPtr(v int) *int { return &v }

func seedPrompts() []storage.AIPrompt {
	return []storage.AIPrompt{
		{
			ID:          uuid.NewString(),
			Name:        "contribution_triage_agent",
			Version:     1,
			Status:      storage.PromptStatusActive,
			Description: "Analyzes a new user contribution to decide the next AI action. Uses a fast, cheap model.",
			Parameters: storage.PromptParameters{
				Model:          "google/gemini-2.5-flash-lite",
				Temperature:    0.1,
				MaxTokens:      100,
				ResponseFormat: &storage.ResponseFormat{Type: "json_object"},
			},
			ExpectedVars: []string{"goal", "latest_contribution_text"},
			Template: `You are a triage agent for a collaboration tool. Analyze the 'LATEST CONTRIBUTION' in the context of the 'GOAL' and decide on an action.

Goal: {{ goal }}
Latest contribution: {{ latest_contribution_text }}

Actions:
- LOG_ONLY: Just log the message, no AI response needed
- ANSWER_DIRECTLY: Provide a direct answer to a question
- SYNTHESIZE: Generate a full synthesis of the conversation

Respond only with a JSON object: {"action": "CHOSEN_ACTION"}`,
		},
		{
			ID:          uuid.NewString(),
			Name:        "direct_response_agent",
			Version:     1,
			Status:      storage.PromptStatusActive,
			Description: "AI facilitator that answers a team member's question directly using recent conversation context.",
			Parameters: storage.PromptParameters{
				Model:       "google/gemini-2.5-flash",
				Temperature: 0.7,
				MaxTokens:   1000,
			},
			ExpectedVars: []string{"context"},
			Template: `You are assisting a team working toward a shared goal. Use the conversation context below to respond to the latest contribution.

{{ context }}

**Your Task**: Provide a concise, helpful response to the latest question:

- Reference earlier contributions and the goal when relevant
- Stay facilitative, not directive - help the team think it through
- Keep it to 2-3 sentences max
- Be honest when the context above does not contain the answer

Respond with your answer directly (no JSON formatting needed):`,
		},
		{
			ID:                 uuid.NewString(),
			Name:               "synthesis_facilitator_default",
			Version:            1,
			Status:             storage.PromptStatusActive,
			AssertivenessLevel: intPtr(2),
			Description:        "Synthesizes the full conversation into a structured status summary for the team.",
			Parameters: storage.PromptParameters{
				Model:          "google/gemini-2.5-flash",
				Temperature:    0.2,
				MaxTokens:      2048,
				ResponseFormat: &storage.ResponseFormat{Type: "json_object"},
			},
			ExpectedVars: []string{"goal", "history"},
			Template: `You are the lead AI facilitator managing a team discussion. Synthesize the conversation below into a structured status summary.

**Session Goal**: {{ goal }}

**Full Conversation History**:
{{ history }}

**Your Task**: Output valid JSON with this exact structure:

{
  "currentState": "Where the discussion stands right now - decisions made, information shared, work in progress",
  "emergingConsensus": "Points the team appears to agree on, or an empty string if none yet",
  "outstandingQuestions": ["Specific open question 1", "Specific open question 2"],
  "nextStepsNeeded": "The single most important next step for the team"
}

**CRITICAL: Output ONLY the raw JSON object - no markdown code blocks, no additional text or formatting. Start directly with { and end with }.**`,
		},
		{
			ID:                 uuid.NewString(),
			Name:               "synthesis_facilitator_briefings",
			Version:            1,
			Status:             storage.PromptStatusActive,
			AssertivenessLevel: intPtr(2),
			Description:        "Comprehensive synthesis prompt that creates briefing packages with overall context and personalized briefings for each team member.",
			Parameters: storage.PromptParameters{
				Model:          "google/gemini-2.5-flash",
				Temperature:    0.2,
				MaxTokens:      2048,
				ResponseFormat: &storage.ResponseFormat{Type: "json_object"},
			},
			ExpectedVars: []string{"goal", "roles_text", "contributions_text"},
			Template: `You are the lead AI facilitator managing a team discussion. Create a comprehensive briefing package that includes overall context and personalized briefings for each team member.

**Session Goal**: {{ goal }}

**Team**: {{ roles_text }}

**Full Conversation**: {{ contributions_text }}

**Your Task**: Output valid JSON with this exact structure:

{
  "overallContext": "COMPREHENSIVE facilitator notes for full team context. Include: key decisions made, critical information shared, specific next steps identified, open questions, context dependencies between roles, priorities, strategic context, and any important nuances. Use bullet points and structure this well - it should be thorough and detailed to give complete situational awareness.",

  "individualBriefings": {
    "ROLE_ID_1": {
      "briefing": "Hi [Name], 2-3 concise sentences max about what's most relevant to your role right now. Be direct and specific.",
      "questions": ["Specific question 1 to move their work forward", "Specific question 2 if needed"],
      "todos": ["Concrete action item 1 if clear from context", "Action item 2 if applicable"],
      "priorities": "Single sentence about what they should focus on first"
    },
    "ROLE_ID_2": {
      "briefing": "Hi [Name], ...",
      "questions": ["..."],
      "todos": ["..."],
      "priorities": "..."
    }
  }
}

**Guidelines:**

**For Overall Context (be comprehensive):**
- Include all key decisions, information, and strategic context
- Use bullet points and clear structure
- Cover dependencies between team members
- Note priorities and open questions
- Be thorough - this is the master context for facilitators
- Include nuances and important details that inform the situation

**For Individual Briefings (be concise):**
- Keep briefings to 2-3 sentences MAX - be concise and scannable
- Focus on what's immediately actionable and relevant to their role
- Questions should be specific and focused (1-2 max)
- Todos only if they clearly emerged from discussion
- Priorities should be one clear, focused sentence
- Make it quick to read and understand at a glance

**CRITICAL: Output ONLY the raw JSON object - no markdown code blocks, no additional text or formatting. Start directly with { and end with }.**`,
		},
		{
			ID:          uuid.NewString(),
			Name:        "role_chat_response",
			Version:     1,
			Status:      storage.PromptStatusActive,
			Description: "AI facilitator that provides helpful, contextual responses to team members' questions using project context and briefings.",
			Parameters: storage.PromptParameters{
				Model:       "google/gemini-2.5-flash",
				Temperature: 0.7,
				MaxTokens:   1000,
			},
			ExpectedVars: []string{"role", "current_briefing", "synthesis", "chat_history_text"},
			Template: `You are the AI facilitator for {{ role['name'] }} ({{ role['title'] }}). They have asked you a question and expect a helpful response.

**Current Briefing for {{ role['name'] }}**:
{{ current_briefing }}

**Project Context**:
{{ synthesis }}

**Chat History**:
{{ chat_history_text }}

**CRITICAL CONSTRAINTS:**
- For FACTUAL questions about the project: Only use information from the briefing, project context, and chat history above
- For PROCESS/FACILITATION questions: You may use your knowledge of facilitation methods and project management
- If factual information isn't available in the provided context, clearly state "I don't have that information from our discussion" rather than guessing
- Never inject external knowledge about the subject matter or make assumptions beyond what was shared

**Your Task**: Provide a concise, helpful response to their latest question:

- Reference their briefing and project context when relevant
- Ask follow-up questions to move their work forward
- Stay facilitative, not directive - help them think through it
- Keep it to 2-3 sentences max
- Be directly helpful and specific
- Be honest about information gaps

Respond with your answer directly (no JSON formatting needed):`,
		},
	}
}

func run(ctx context.Context, logger *slog.Logger, store *storage.SQLiteStore, force bool) error {
	if force {
		logger.Warn("Force mode enabled - clearing existing prompts")
		if err := store.DeleteAllPrompts(ctx); err != nil {
			return fmt.Errorf("clear prompts: %w", err)
		}
	}

	created, skipped := 0, 0
	for _, p := range seedPrompts() {
		if !force {
			existing, err := store.GetActivePrompt(ctx, p.Name)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("check prompt %q: %w", p.Name, err)
			}
			if existing != nil {
				logger.Info("Skipped prompt (already exists)", "prompt", p.Name)
				skipped++
				continue
			}
		}

		if err := store.CreatePrompt(ctx, p); err != nil {
			return fmt.Errorf("create prompt %q: %w", p.Name, err)
		}
		logger.Info("Created prompt", "prompt", p.Name, "model", p.Parameters.Model)
		created++
	}

	logger.Info("Seeding complete", "created", created, "skipped", skipped)
	return nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found or failed to load, relying on environment variables")
	}

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	force := flag.Bool("force", false, "clear existing prompts and recreate all")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.Path == "" {
		slog.Error("database.path is required")
		os.Exit(1)
	}

	logger := slog.Default()

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		logger.Error("failed to create storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	if err := run(context.Background(), logger, store, *force); err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

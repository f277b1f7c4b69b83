package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/avelinom/scout/llm"
	"github.com/avelinom/scout/tools/base"

	_ "modernc.org/sqlite"
)

const maxSQLRows = 50

// DatabaseSource lists the enabled databases as name to file path
type DatabaseSource interface {
	EnabledDatabases() map[string]string
}

// SQLRetrievalTool answers questions against local SQLite databases.
// Input that already looks like SQL is executed directly; natural
// language is translated to a SELECT via the LLM first.
type SQLRetrievalTool struct {
	base.BaseTool
	source DatabaseSource
	client llm.Client
}

// NewSQLRetrievalTool creates a new SQL retrieval tool. The client may
// be nil, in which case only direct SQL input is supported.
func NewSQLRetrievalTool(source DatabaseSource, client llm.Client) *SQLRetrievalTool {
	return &SQLRetrievalTool{
		BaseTool: base.BaseTool{
			ToolName: NameSQLRetrieval,
			ToolDesc: "Query the local SQLite databases. Input can be a question or a SELECT statement.",
		},
		source: source,
		client: client,
	}
}

// Execute runs the query against the enabled databases
func (t *SQLRetrievalTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p base.GenericParams
	if err := json.Unmarshal(params, &p); err != nil {
		return "", NewToolError("INVALID_PARAMS", "failed to parse parameters").WithDetail("error", err.Error())
	}
	if err := Validate(&p); err != nil {
		return "", NewToolError("INVALID_PARAMS", err.Error())
	}

	databases := t.enabledDatabases()
	if len(databases) == 0 {
		return "", NewToolError("NO_DATABASES", "no databases are enabled")
	}

	if isDirectSQL(p.Input) {
		return t.executeDirect(ctx, databases, p.Input)
	}
	return t.executeNatural(ctx, databases, p.Input)
}

func (t *SQLRetrievalTool) enabledDatabases() map[string]string {
	if t.source == nil {
		return nil
	}
	return t.source.EnabledDatabases()
}

// isDirectSQL reports whether the input is already a SQL statement
func isDirectSQL(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(lower, "select") || strings.HasPrefix(lower, "with")
}

// validateReadOnly rejects anything that is not a single SELECT query
func validateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return NewToolError("SQL_REJECTED", "only SELECT statements are allowed")
	}
	if idx := strings.Index(trimmed, ";"); idx >= 0 && strings.TrimSpace(trimmed[idx+1:]) != "" {
		return NewToolError("SQL_REJECTED", "multiple statements are not allowed")
	}
	return nil
}

// executeDirect runs the statement against every enabled database and
// keeps whichever succeed
func (t *SQLRetrievalTool) executeDirect(ctx context.Context, databases map[string]string, query string) (string, error) {
	if err := validateReadOnly(query); err != nil {
		return "", err
	}

	var sb strings.Builder
	var firstErr error
	for _, name := range sortedNames(databases) {
		out, err := runQuery(ctx, databases[name], query)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(&sb, "Database %s:\n%s\n\n", name, out)
	}

	if sb.Len() == 0 {
		if firstErr != nil {
			return "", NewToolError("QUERY_FAILED", "query failed on all enabled databases").
				WithDetail("error", firstErr.Error())
		}
		return "No results.", nil
	}
	return strings.TrimSpace(sb.String()), nil
}

// executeNatural translates the question into a SELECT using the
// database schemas, then runs it
func (t *SQLRetrievalTool) executeNatural(ctx context.Context, databases map[string]string, question string) (string, error) {
	if t.client == nil {
		return "", NewToolError("NO_TRANSLATOR", "natural language queries require an LLM client")
	}

	schemas, err := describeSchemas(ctx, databases)
	if err != nil {
		return "", NewToolError("SCHEMA_FAILED", "failed to read database schemas").WithDetail("error", err.Error())
	}

	system := "You translate questions into SQLite SELECT statements. " +
		"Respond with a JSON object {\"database\": \"<name>\", \"sql\": \"<query>\"} and nothing else. " +
		"The query must be a single read-only SELECT against one of the databases below.\n\n" + schemas
	raw, err := llm.Complete(ctx, t.client, system, question)
	if err != nil {
		return "", NewToolError("TRANSLATION_FAILED", "failed to translate question to SQL").WithDetail("error", err.Error())
	}

	var plan struct {
		Database string `json:"database"`
		SQL      string `json:"sql"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &plan); err != nil {
		return "", NewToolError("TRANSLATION_FAILED", "translator returned malformed plan").WithDetail("raw", raw)
	}

	path, ok := databases[plan.Database]
	if !ok {
		return "", NewToolError("TRANSLATION_FAILED", fmt.Sprintf("translator chose unknown database %q", plan.Database))
	}
	if err := validateReadOnly(plan.SQL); err != nil {
		return "", err
	}

	out, err := runQuery(ctx, path, plan.SQL)
	if err != nil {
		return "", NewToolError("QUERY_FAILED", "query execution failed").
			WithDetail("sql", plan.SQL).
			WithDetail("error", err.Error())
	}
	return fmt.Sprintf("SQL: %s\n\n%s", plan.SQL, out), nil
}

// runQuery executes a read-only query and renders the rows as text
func runQuery(ctx context.Context, path, query string) (string, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(cols, " | "))
	sb.WriteString("\n")

	count := 0
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if count >= maxSQLRows {
			sb.WriteString("... (truncated)\n")
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			fields[i] = renderValue(v)
		}
		sb.WriteString(strings.Join(fields, " | "))
		sb.WriteString("\n")
		count++
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if count == 0 {
		return "No rows returned.", nil
	}
	return strings.TrimSpace(sb.String()), nil
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// describeSchemas collects the CREATE TABLE statements of every
// enabled database
func describeSchemas(ctx context.Context, databases map[string]string) (string, error) {
	var sb strings.Builder
	for _, name := range sortedNames(databases) {
		db, err := sql.Open("sqlite", databases[name])
		if err != nil {
			return "", fmt.Errorf("open %s: %w", name, err)
		}

		rows, err := db.QueryContext(ctx,
			`SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL`)
		if err != nil {
			db.Close()
			return "", fmt.Errorf("introspect %s: %w", name, err)
		}

		fmt.Fprintf(&sb, "Database %q:\n", name)
		for rows.Next() {
			var ddl string
			if err := rows.Scan(&ddl); err != nil {
				rows.Close()
				db.Close()
				return "", err
			}
			sb.WriteString(ddl)
			sb.WriteString(";\n")
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			db.Close()
			return "", err
		}
		rows.Close()
		db.Close()
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stripFences removes a markdown code fence wrapper if present
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/avelinom/scout/agent"
	"github.com/avelinom/scout/config"
	"github.com/avelinom/scout/docindex"
	"github.com/avelinom/scout/fixtures"
	"github.com/avelinom/scout/history"
	"github.com/avelinom/scout/llm"
	"github.com/avelinom/scout/llm/ollama"
	"github.com/avelinom/scout/llm/openai"
	"github.com/avelinom/scout/tools"
	"github.com/avelinom/scout/tools/registry"
	"github.com/avelinom/scout/tui"
)

var (
	// Flags
	provider     string
	model        string
	verbose      bool
	session      string
	runCode      bool
	continueLast bool

	rootCmd = &cobra.Command{
		Use:   "scout",
		Short: "Tool-routing research agent",
		Long:  "Scout answers questions by routing them through local documents, SQLite databases and web search, then composing a reply with an LLM.",
		RunE:  runChat,
	}

	queryCmd = &cobra.Command{
		Use:   "query [message]",
		Short: "Run a one-shot query without entering the chat",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runQuery,
	}

	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Session management commands",
	}

	sessionsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		RunE:  runSessionsList,
	}

	sessionsShowCmd = &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print the transcript of a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsShow,
	}

	sessionsDeleteCmd = &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsDelete,
	}

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "Tool management commands",
	}

	toolsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List tools and their state",
		RunE:  runToolsList,
	}

	toolsEnableCmd = &cobra.Command{
		Use:   "enable [tool-name]",
		Short: "Enable a tool",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setToolEnabled(args[0], true) },
	}

	toolsDisableCmd = &cobra.Command{
		Use:   "disable [tool-name]",
		Short: "Disable a tool",
		Args:  cobra.ExactArgs(1),
		RunE:  func(cmd *cobra.Command, args []string) error { return setToolEnabled(args[0], false) },
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the demo SQLite databases",
		RunE:  runSeed,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [directory]",
		Short: "Index the text documents in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider (openai, ollama)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	queryCmd.Flags().StringVarP(&session, "session", "s", "", "Resume a specific session")
	queryCmd.Flags().BoolVarP(&continueLast, "continue", "c", false, "Continue the most recent session")
	queryCmd.Flags().BoolVar(&runCode, "code", false, "Allow the code execution tool for this query")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsListCmd, toolsEnableCmd, toolsDisableCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(ingestCmd)

	viper.BindPFlags(rootCmd.PersistentFlags())
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: error loading .env file: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// env bundles the wired application components
type env struct {
	cfg      *config.Manager
	store    *history.Store
	registry *registry.Registry
	client   llm.Client
	manager  *agent.Manager
	logger   *slog.Logger
}

// buildEnv wires config, store, index, tools and the session manager
func buildEnv(needLLM bool) (*env, error) {
	logger := newLogger()

	cfg, err := config.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	dir, err := history.DefaultDir()
	if err != nil {
		return nil, err
	}
	store, err := history.NewStore(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	indexPath, err := docindex.DefaultPath()
	if err != nil {
		return nil, err
	}
	index, err := docindex.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open document index: %w", err)
	}

	if provider == "" {
		provider = cfg.GetDefaultProvider()
	}
	if model == "" {
		model = cfg.GetDefaultModel()
	}
	provider = strings.ToLower(provider)

	var client llm.Client
	if needLLM {
		client, err = createLLMClient(provider, model)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", provider, err)
		}
	}

	reg := registry.New()
	register := func(tool tools.Tool, priority int) error {
		if err := reg.Register(tool, priority); err != nil {
			return err
		}
		return reg.SetEnabled(tool.Name(), cfg.IsToolEnabled(tool.Name()))
	}
	if err := register(tools.NewDocumentRetrievalTool(index, cfg), tools.PriorityDocumentRetrieval); err != nil {
		return nil, err
	}
	if err := register(tools.NewSQLRetrievalTool(cfg, client), tools.PrioritySQLRetrieval); err != nil {
		return nil, err
	}
	if err := register(tools.NewSearchWebTool(), tools.PrioritySearchWeb); err != nil {
		return nil, err
	}
	if err := register(tools.NewRunCodeTool(client), tools.PriorityRunCode); err != nil {
		return nil, err
	}

	managerCfg := agent.DefaultConfig()
	managerCfg.Model = model
	manager := agent.NewManager(client, reg, store,
		agent.WithConfig(managerCfg),
		agent.WithLogger(logger),
	)

	return &env{
		cfg:      cfg,
		store:    store,
		registry: reg,
		client:   client,
		manager:  manager,
		logger:   logger,
	}, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(true)
	if err != nil {
		return err
	}
	defer e.client.Close()

	p := tea.NewProgram(
		tui.NewChat(e.manager, e.store, e.cfg, e.registry, model),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running chat: %w", err)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(true)
	if err != nil {
		return err
	}
	defer e.client.Close()

	if continueLast && session == "" {
		session, err = e.store.LatestID()
		if err != nil {
			return fmt.Errorf("no session to continue: %w", err)
		}
	}
	if session != "" {
		if err := e.manager.LoadSession(session); err != nil {
			return fmt.Errorf("failed to resume session: %w", err)
		}
	}

	result, err := e.manager.Handle(context.Background(), agent.Query{
		Text:    strings.Join(args, " "),
		RunCode: runCode,
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Reply)
	if verbose {
		fmt.Printf("\n[session: %s]\n", e.manager.SessionID())
		for _, rec := range result.ToolCalls {
			fmt.Printf("[%s: %s]\n", rec.ToolName, rec.Status)
		}
	}
	return nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(false)
	if err != nil {
		return err
	}

	infos, err := e.store.ListAll()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%s  %s  %d messages, %d tool calls\n",
			info.ID, info.Title, info.Messages, info.ToolCalls)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(false)
	if err != nil {
		return err
	}

	conv, err := e.store.Load(args[0])
	if err != nil {
		return err
	}
	for _, msg := range conv.Messages {
		fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
	}
	if len(conv.ToolCalls) > 0 {
		fmt.Println("\nTool calls:")
		for _, rec := range conv.ToolCalls {
			fmt.Printf("  %s (%s) %s\n", rec.ToolName, rec.Status, rec.CallID)
		}
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(false)
	if err != nil {
		return err
	}
	if err := e.store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", args[0])
	return nil
}

func runToolsList(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(false)
	if err != nil {
		return err
	}

	fmt.Println("Tools:")
	for _, d := range e.registry.Descriptors() {
		state := "enabled"
		if !d.Enabled {
			state = "disabled"
		}
		tool, err := e.registry.Resolve(d.Name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-20s %-9s priority %d\n      %s\n", d.Name, state, d.DisplayPriority, tool.Description())
	}
	return nil
}

func setToolEnabled(name string, enabled bool) error {
	e, err := buildEnv(false)
	if err != nil {
		return err
	}
	if _, err := e.registry.Resolve(name); err != nil {
		return err
	}
	if err := e.cfg.SetToolEnabled(name, enabled); err != nil {
		return err
	}
	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("%s %s\n", name, state)
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	e, err := buildEnv(false)
	if err != nil {
		return err
	}

	seeded := 0
	for name, seedFn := range map[string]func(string) error{
		"employees": fixtures.SeedEmployees,
		"projects":  fixtures.SeedProjects,
	} {
		dbPath, ok := e.cfg.DatabasePath(name)
		if !ok {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return err
		}
		if err := seedFn(dbPath); err != nil {
			return fmt.Errorf("failed to seed %s: %w", name, err)
		}
		fmt.Printf("Seeded %s at %s\n", name, dbPath)
		seeded++
	}
	if seeded == 0 {
		fmt.Println("No database mappings configured.")
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	indexPath, err := docindex.DefaultPath()
	if err != nil {
		return err
	}
	index, err := docindex.Open(indexPath)
	if err != nil {
		return err
	}

	count, err := index.Ingest(args[0])
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Printf("Indexed %d documents from %s\n", count, args[0])
	return nil
}

func createLLMClient(provider, model string) (llm.Client, error) {
	switch provider {
	case "", "openai":
		return openai.NewClient(llm.WithModel(model))
	case "ollama":
		return ollama.NewClient(llm.WithModel(model))
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

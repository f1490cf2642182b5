package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/fabfab/symptom-agent/api"
	"github.com/fabfab/symptom-agent/chat"
	"github.com/fabfab/symptom-agent/config"
	"github.com/fabfab/symptom-agent/corpus"
	"github.com/fabfab/symptom-agent/database"
	"github.com/fabfab/symptom-agent/diagnostic"
	"github.com/fabfab/symptom-agent/dialogue"
	"github.com/fabfab/symptom-agent/embeddings"
	"github.com/fabfab/symptom-agent/index"
	"github.com/fabfab/symptom-agent/knowledge"
	"github.com/fabfab/symptom-agent/llm"
	"github.com/fabfab/symptom-agent/logging"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Error("unknown command", zap.String("command", os.Args[1]))
		printUsage()
		os.Exit(1)
	}
}

// stack holds the connections opened for one command so they can be closed
// together.
type stack struct {
	pool   *pgxpool.Pool
	driver neo4j.DriverWithContext
}

func (s *stack) close(ctx context.Context) {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.driver != nil {
		_ = s.driver.Close(ctx)
	}
}

func serveCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "address to listen on")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse serve flags", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st := &stack{}
	defer st.close(context.Background())

	router := buildRouter(ctx, cfg, logger, st)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.New(router, logger, api.Options{AllowedOrigins: cfg.AllowedOrigins}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", *addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", zap.Error(err))
		}
		logger.Info("server stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}
}

func chatCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	question := flags.String("question", "", "ask a single question and exit")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse chat flags", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st := &stack{}
	defer st.close(context.Background())

	router := buildRouter(ctx, cfg, logger, st)
	const session = "cli"

	if strings.TrimSpace(*question) != "" {
		reply, err := router.Handle(ctx, session, *question)
		if err != nil {
			logger.Fatal("chat failed", zap.Error(err))
		}
		fmt.Println(reply.Response)
		return
	}

	fmt.Println("Type a message, or an empty line to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			break
		}
		reply, err := router.Handle(ctx, session, text)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Println(reply.Response)
	}
	if err := scanner.Err(); err != nil {
		logger.Fatal("read input", zap.Error(err))
	}
}

func ingestCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	general := flags.String("general", cfg.GeneralCorpusPath, "path to the general Q&A corpus")
	factors := flags.String("factors", cfg.FactorCorpusPath, "path to the factor-group corpus")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse ingest flags", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := corpus.Load(*general, *factors)
	if err != nil {
		logger.Fatal("load corpus", zap.Error(err))
	}

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connection", zap.Error(err))
	}
	defer pool.Close()

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal("embedder setup", zap.Error(err))
	}

	logger.Info("ingesting corpus",
		zap.Int("documents", len(c.Documents)),
		zap.String("embeddings", strings.ToUpper(cfg.Embeddings.Provider)+"/"+cfg.Embeddings.Model))

	builder := index.NewPostgresBuilder(pool, embedder, cfg.Embeddings.Dimension, logger)
	if _, err := builder.Build(ctx, c.Documents, c.Version); err != nil {
		logger.Fatal("ingestion failed", zap.Error(err))
	}

	if !cfg.GraphEnabled {
		return
	}
	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatal("neo4j connection", zap.Error(err))
	}
	defer driver.Close(ctx)

	if err := knowledge.SyncGraph(ctx, driver, knowledge.BuildGraph(c.Factors, c.Version)); err != nil {
		logger.Fatal("graph sync failed", zap.Error(err))
	}
	logger.Info("factor graph synced", zap.Int("groups", len(c.Factors.FactorGroups)))
}

func clearCmd(cfg config.Config, logger *zap.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatal("parse clear flags", zap.Error(err))
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the stored knowledge index and factor graph. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatal("read confirmation", zap.Error(err))
			}
			logger.Info("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Info("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("postgres connection", zap.Error(err))
	}
	defer pool.Close()

	if err := database.TruncateKnowledge(ctx, pool); err != nil {
		logger.Fatal("truncate postgres tables", zap.Error(err))
	}
	logger.Info("cleared stored knowledge index")

	if !cfg.GraphEnabled {
		return
	}
	driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
	if err != nil {
		logger.Fatal("neo4j connection", zap.Error(err))
	}
	defer driver.Close(ctx)

	if err := knowledge.Purge(ctx, driver); err != nil {
		logger.Fatal("clear neo4j", zap.Error(err))
	}
	logger.Info("factor graph cleared")
}

// buildRouter performs the startup sequence shared by serve and chat: load
// the corpus, build the index, connect the model and wire the dialogue.
// Any failure here is fatal.
func buildRouter(ctx context.Context, cfg config.Config, logger *zap.Logger, st *stack) *dialogue.Router {
	c, err := corpus.Load(cfg.GeneralCorpusPath, cfg.FactorCorpusPath)
	if err != nil {
		logger.Fatal("load corpus", zap.Error(err))
	}
	counts := corpus.CountByProvenance(c.Documents)
	logger.Info("corpus loaded",
		zap.Int("general_qa", counts[corpus.ProvenanceGeneralQA]),
		zap.Int("factor_groups", counts[corpus.ProvenanceFactorGroup]),
		zap.Int("emergency_info", counts[corpus.ProvenanceEmergencyInfo]))

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatal("embedder setup", zap.Error(err))
	}

	var builder index.Builder
	switch cfg.IndexBackend {
	case config.IndexBackendPostgres:
		st.pool, err = database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("postgres connection", zap.Error(err))
		}
		builder = index.NewPostgresBuilder(st.pool, embedder, cfg.Embeddings.Dimension, logger)
	default:
		builder = index.NewMemoryBuilder(embedder, logger)
	}

	idx, err := builder.Build(ctx, c.Documents, c.Version)
	if err != nil {
		logger.Fatal("build knowledge index", zap.Error(err))
	}

	var graph chat.GraphStore
	if cfg.GraphEnabled {
		st.driver, err = database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			logger.Fatal("neo4j connection", zap.Error(err))
		}
		if err := knowledge.SyncGraph(ctx, st.driver, knowledge.BuildGraph(c.Factors, c.Version)); err != nil {
			logger.Fatal("graph sync failed", zap.Error(err))
		}
		graph = chat.NewNeo4jGraphStore(st.driver)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatal("llm setup", zap.Error(err))
	}

	answerer := chat.NewService(idx, graph, llmClient, logger, chat.Config{
		TopK:              cfg.TopK,
		CondenseQuestions: cfg.CondenseQuestions,
	})

	engine := diagnostic.NewEngine(c.Snapshot())
	logger.Info("questionnaire ready",
		zap.String("symptom", c.Factors.Symptom),
		zap.Int("questions", engine.Questions()))

	return dialogue.NewRouter(
		dialogue.NewDetector(cfg.ResetPhrases, cfg.TriggerPhrases),
		engine,
		answerer,
		dialogue.NewSessionStore(cfg.SessionTTL, cfg.MemoryMaxTurns),
		logger,
	)
}

func printUsage() {
	fmt.Println("Usage: symptom-agent <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Start the HTTP chat API (use --addr to override the listen address)")
	fmt.Println("  chat     Talk to the agent from the terminal (use --question for a single turn)")
	fmt.Println("  ingest   Store the corpus embeddings in Postgres and sync the factor graph to Neo4j")
	fmt.Println("  clear    Remove the stored knowledge index and factor graph (use --confirm to skip the prompt)")
}

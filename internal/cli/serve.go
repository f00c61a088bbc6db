package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msomdec/care-practice/internal/config"
	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/handler"
	"github.com/msomdec/care-practice/internal/llm"
	"github.com/msomdec/care-practice/internal/repository/corpus"
	"github.com/msomdec/care-practice/internal/repository/sqlite"
	"github.com/msomdec/care-practice/internal/service"
)

// Sign-in attempts and generation-backed requests are throttled per key.
const (
	signInRate      = 10.0 / 60
	signInBurst     = 5
	generationRate  = 1.0
	generationBurst = 5
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Apply pending migrations, then serve the practice and assessment
pages and the JSON API until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied", "path", cfg.Database.Path)

	gateway := newGateway(cfg.LLM)
	emailPattern := regexp.MustCompile(cfg.Auth.EmailPattern)

	identity := service.NewIdentityService(db.Participants(), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, emailPattern, cfg.Auth.InstructorPinHash)
	practice := service.NewPracticeService(
		db.PracticeSessions(),
		db.SelfEfficacy(),
		db.TurnLog(),
		gateway,
		newProtocol(cfg.Protocol),
		service.CoachingRules{
			AdviceStreak:    cfg.Coaching.AdviceStreak,
			OpenQuestionGap: cfg.Coaching.OpenQuestionGap,
		},
		cfg.Efficacy.Max,
	)
	assessments := service.NewAssessmentService(db.Assessments(), newCorpus(cfg.Corpus))

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Identity:          identity,
		Practice:          practice,
		Assessments:       assessments,
		Health:            handler.NewHealthHandler(db.SqlDB, gateway.Backends()),
		TokenTTL:          cfg.Auth.TokenTTL,
		CookieSecure:      cfg.Server.CookieSecure,
		SignInLimiter:     service.NewRateLimiter(ctx, signInRate, signInBurst),
		GenerationLimiter: service.NewRateLimiter(ctx, generationRate, generationBurst),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "backends", gateway.Backends())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func newGateway(cfg config.LLMConfig) *llm.Gateway {
	backends := make([]llm.Backend, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		backends = append(backends, llm.NewOpenAIBackend(llm.OpenAIConfig{
			Name:    b.Name,
			BaseURL: b.BaseURL,
			Model:   b.Model,
			APIKey:  b.APIKey(),
			Timeout: b.Timeout,
		}))
	}
	return llm.NewGateway(backends, llm.WithLogger(slog.Default().With("component", "gateway")))
}

func newProtocol(cfg config.ProtocolConfig) service.Protocol {
	p := service.Protocol{
		Phases:    make(map[domain.Phase]service.PhaseRule, len(cfg.Phases)),
		Scenarios: make(map[string]service.Scenario, len(cfg.Scenarios)),
	}
	for name, ph := range cfg.Phases {
		p.Phases[domain.Phase(name)] = service.PhaseRule{ScenarioID: ph.Scenario, TurnLimit: ph.TurnLimit}
	}
	for id, s := range cfg.Scenarios {
		p.Scenarios[id] = service.Scenario{ID: id, Name: s.Name, Background: s.Background, Style: s.Style}
	}
	return p
}

func newCorpus(cfg config.CorpusConfig) *corpus.Store {
	datasets := make([]corpus.Dataset, len(cfg.Datasets))
	for i, d := range cfg.Datasets {
		datasets[i] = corpus.Dataset{Culture: d.Culture, File: d.File}
	}
	return corpus.NewStore(datasets)
}

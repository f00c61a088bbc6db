package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/msomdec/care-practice/internal/config"
	"github.com/msomdec/care-practice/internal/domain"
	"github.com/msomdec/care-practice/internal/repository/sqlite"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{" WARN ", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"verbose", "INFO"},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in).String(); got != tt.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewProtocol(t *testing.T) {
	p := newProtocol(config.DefaultConfig().Protocol)

	if got := p.TurnLimit(domain.PhasePractice); got != 10 {
		t.Errorf("practice turn limit = %d, want 10", got)
	}
	scn := p.ScenarioFor(domain.PhasePre)
	if scn.ID != "alex" || scn.Background == "" {
		t.Errorf("pre scenario = %+v, want alex with a background", scn)
	}
	for _, ph := range domain.Phases {
		if _, ok := p.Phases[ph]; !ok {
			t.Errorf("phase %s missing", ph)
		}
	}
}

func TestNewCorpusKeepsOrder(t *testing.T) {
	store := newCorpus(config.CorpusConfig{Datasets: []config.DatasetConfig{
		{Culture: "Chinese", File: "c.jsonl"},
		{Culture: "Arabic", File: "a.jsonl"},
	}})
	if got := strings.Join(store.Cultures(), ","); got != "Chinese,Arabic" {
		t.Errorf("cultures = %s", got)
	}
}

func TestNewGatewayBackendNames(t *testing.T) {
	g := newGateway(config.LLMConfig{Backends: []config.BackendConfig{
		{Name: "primary", Provider: "openai", Model: "m1"},
		{Name: "fallback", Provider: "openai", Model: "m2", BaseURL: "http://localhost:11434/v1"},
	}})
	if got := strings.Join(g.Backends(), ","); got != "primary,fallback" {
		t.Errorf("backends = %s", got)
	}
}

// runCommand executes the root command against a database in a temp dir.
func runCommand(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	t.Setenv("JWT_SECRET", strings.Repeat("k", 32))
	t.Setenv("DATABASE_PATH", dbPath)
	t.Setenv("LOG_LEVEL", "error")
	t.Cleanup(func() {
		exportOut = ""
		configPath = ""
		migrateStatus = false
		hashPinCost = config.DefaultConfig().Auth.BcryptCost
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	if got := runCommand(t, dbPath, "migrate"); !strings.Contains(got, "5 migration(s) applied") {
		t.Errorf("first run output = %q", got)
	}
	if got := runCommand(t, dbPath, "migrate"); !strings.Contains(got, "0 migration(s) applied") {
		t.Errorf("second run output = %q", got)
	}

	status := runCommand(t, dbPath, "migrate", "--status")
	lines := strings.Split(strings.TrimSpace(status), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 status lines, got %q", status)
	}
	for _, line := range lines {
		if !strings.Contains(line, "applied ") {
			t.Errorf("expected applied migration, got %q", line)
		}
	}
}

func TestExportAssessmentsToFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	scores := make(map[string]int)
	for _, f := range domain.ScoreFields {
		scores[f] = 4
	}
	row := &domain.AssessmentRow{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		RaterID:   "r1", Culture: "Chinese", DatasetFile: "c.jsonl",
		ItemID: "s1", ItemIndex: 0, Scores: scores,
	}
	if err := db.Assessments().Append(context.Background(), row); err != nil {
		t.Fatal(err)
	}
	db.Close()

	out := filepath.Join(dir, "ratings.csv")
	runCommand(t, dbPath, "export", "assessments", "--out", out)

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want header + 1", len(records))
	}
	if records[1][1] != "r1" || records[1][4] != "s1" {
		t.Errorf("row = %v", records[1])
	}
}

func TestExportEfficacyToStdout(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	got := runCommand(t, dbPath, "export", "efficacy")

	records, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	if err != nil {
		t.Fatalf("stdout is not clean CSV: %v\n%s", err, got)
	}
	if len(records) != 1 {
		t.Errorf("empty ledger should export only the header, got %d records", len(records))
	}
}

func TestHashPinCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	got := strings.TrimSpace(runCommand(t, dbPath, "hash-pin", "--cost", "4", "2468"))

	if err := bcrypt.CompareHashAndPassword([]byte(got), []byte("2468")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
}

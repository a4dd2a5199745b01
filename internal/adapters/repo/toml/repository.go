package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	runsPathKey     = "runs.path"
	runsFileMode    = 0o644
	runsDirMode     = 0o755
	runsConfigDir   = ".mcrt"
	runsConfigFile  = "runs.toml"
	tempFilePattern = ".runs-*.toml.tmp"
)

// Repository stores runs in a single TOML file that is replaced atomically
// on every save.
type Repository struct {
	fs       afero.Fs
	runsPath string
	mu       *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.RunRepository = (*Repository)(nil)

// NewRepository resolves the run file on fs from runs.path, defaulting to
// ~/.mcrt/runs.toml. A nil fs means the OS filesystem.
func NewRepository(fs afero.Fs, cfg *viper.Viper) (*Repository, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if cfg == nil {
		cfg = viper.New()
	}

	runsPath := cfg.GetString(runsPathKey)
	if runsPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		runsPath = filepath.Join(homeDir, runsConfigDir, runsConfigFile)
	}

	runsPath, err := normalizeRunsPath(runsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{fs: fs, runsPath: runsPath, mu: lockForPath(runsPath)}, nil
}

// NewFileRepository opens the run file at path on fs.
func NewFileRepository(fs afero.Fs, path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("runs path is empty")
	}
	cfg := viper.New()
	cfg.Set(runsPathKey, path)
	return NewRepository(fs, cfg)
}

func (r *Repository) Path() string {
	return r.runsPath
}

func (r *Repository) Save(ctx context.Context, run domain.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(run)
	updated := false
	for i := range file.Runs {
		if file.Runs[i].ID == encoded.ID {
			file.Runs[i] = encoded
			updated = true
			break
		}
	}

	if !updated {
		file.Runs = append(file.Runs, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) GetByID(ctx context.Context, id domain.RunID) (domain.Run, error) {
	if err := ctx.Err(); err != nil {
		return domain.Run{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Run{}, err
	}

	for _, entry := range file.Runs {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.Run{}, fmt.Errorf("%w: %s", domain.ErrRunNotFound, id)
}

func (r *Repository) List(ctx context.Context) ([]domain.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	runs := make([]domain.Run, 0, len(file.Runs))
	for _, entry := range file.Runs {
		runs = append(runs, fromSchema(entry))
	}

	return runs, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := afero.ReadFile(r.fs, r.runsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			file := fileSchema{}
			file.applyDefaults()
			return file, nil
		}
		return fileSchema{}, fmt.Errorf("read runs file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode runs file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeRunsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve runs path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := r.fs.MkdirAll(filepath.Dir(r.runsPath), runsDirMode); err != nil {
		return fmt.Errorf("create runs directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode runs file: %w", err)
	}

	tempFile, err := afero.TempFile(r.fs, filepath.Dir(r.runsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp runs file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = r.fs.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp runs file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp runs file: %w", err)
	}

	if err := r.fs.Chmod(tempName, runsFileMode); err != nil {
		return fmt.Errorf("chmod temp runs file: %w", err)
	}

	if err := r.fs.Rename(tempName, r.runsPath); err != nil {
		return fmt.Errorf("replace runs file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(run domain.Run) runSchema {
	history := make([]iterationSchema, 0, len(run.History))
	for _, record := range run.History {
		history = append(history, toIterationSchema(record))
	}

	return runSchema{
		ID:          string(run.ID),
		Name:        run.Name,
		Fingerprint: run.Fingerprint,
		CreatedAt:   formatTime(run.CreatedAt),
		State:       run.State.String(),
		History:     history,
		Spectrum:    toSpectrumSchema(run.Spectrum),
		Reabsorbed:  toSpectrumSchema(run.Reabsorbed),
		Virtual:     toSpectrumSchema(run.Virtual),
	}
}

func fromSchema(run runSchema) domain.Run {
	var history []domain.IterationRecord
	if len(run.History) > 0 {
		history = make([]domain.IterationRecord, 0, len(run.History))
	}
	for _, record := range run.History {
		history = append(history, fromIterationSchema(record))
	}

	return domain.Run{
		ID:          domain.RunID(run.ID),
		Name:        run.Name,
		Fingerprint: run.Fingerprint,
		CreatedAt:   parseTime(run.CreatedAt),
		State:       domain.ParseConvergenceState(run.State),
		History:     history,
		Spectrum:    fromSpectrumSchema(run.Spectrum),
		Reabsorbed:  fromSpectrumSchema(run.Reabsorbed),
		Virtual:     fromSpectrumSchema(run.Virtual),
	}
}

func toIterationSchema(record domain.IterationRecord) iterationSchema {
	var interactions map[string]int
	if len(record.Interactions) > 0 {
		interactions = make(map[string]int, len(record.Interactions))
		for kind, count := range record.Interactions {
			interactions[kind.String()] = count
		}
	}

	return iterationSchema{
		Iteration:   record.Iteration,
		State:       record.State.String(),
		Metric:      record.Metric,
		PacketCount: record.PacketCount,
		Energy: energySchema{
			Emitted:    record.Energy.Emitted,
			Escaped:    record.Energy.Escaped,
			Absorbed:   record.Energy.Absorbed,
			Reabsorbed: record.Energy.Reabsorbed,
		},
		LuminosityEmitted:  record.LuminosityEmitted,
		TInner:             record.TInner,
		TInnerNext:         record.TInnerNext,
		TRad:               record.TRad,
		W:                  record.W,
		TRadDelta:          record.TRadDelta,
		WDelta:             record.WDelta,
		Interactions:       interactions,
		StepLimitHits:      record.StepLimitHits,
		SpectrumLuminosity: record.Moments.Luminosity,
		MeanNu:             record.Moments.MeanNu,
		DurationMS:         record.Duration.Milliseconds(),
		Final:              record.Final,
	}
}

func fromIterationSchema(record iterationSchema) domain.IterationRecord {
	var interactions map[domain.InteractionType]int
	if len(record.Interactions) > 0 {
		interactions = make(map[domain.InteractionType]int, len(record.Interactions))
		for _, kind := range domain.InteractionTypes() {
			if count, ok := record.Interactions[kind.String()]; ok {
				interactions[kind] = count
			}
		}
	}

	return domain.IterationRecord{
		Iteration:   record.Iteration,
		State:       domain.ParseConvergenceState(record.State),
		Metric:      record.Metric,
		PacketCount: record.PacketCount,
		Energy: domain.EnergyBudget{
			Emitted:    record.Energy.Emitted,
			Escaped:    record.Energy.Escaped,
			Absorbed:   record.Energy.Absorbed,
			Reabsorbed: record.Energy.Reabsorbed,
		},
		LuminosityEmitted: record.LuminosityEmitted,
		TInner:            record.TInner,
		TInnerNext:        record.TInnerNext,
		TRad:              record.TRad,
		W:                 record.W,
		TRadDelta:         record.TRadDelta,
		WDelta:            record.WDelta,
		Interactions:      interactions,
		StepLimitHits:     record.StepLimitHits,
		Moments:           domain.SpectrumMoments{Luminosity: record.SpectrumLuminosity, MeanNu: record.MeanNu},
		Duration:          time.Duration(record.DurationMS) * time.Millisecond,
		Final:             record.Final,
	}
}

func toSpectrumSchema(spectrum *domain.Spectrum) *spectrumSchema {
	if spectrum == nil {
		return nil
	}

	return &spectrumSchema{Edges: spectrum.Edges, Luminosity: spectrum.Luminosity}
}

func fromSpectrumSchema(spectrum *spectrumSchema) *domain.Spectrum {
	if spectrum == nil {
		return nil
	}

	return &domain.Spectrum{Edges: spectrum.Edges, Luminosity: spectrum.Luminosity}
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}

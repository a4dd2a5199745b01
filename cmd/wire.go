package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/bnema/mcrt/internal/adapters/atomdata"
	"github.com/bnema/mcrt/internal/adapters/config"
	summaryadapter "github.com/bnema/mcrt/internal/adapters/render/summary"
	tomlrepo "github.com/bnema/mcrt/internal/adapters/repo/toml"
	"github.com/bnema/mcrt/internal/application"
	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/logging"
	"github.com/bnema/mcrt/internal/ports"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type app struct {
	fs            afero.Fs
	configs       *config.Loader
	atoms         *atomdata.Loader
	repo          *tomlrepo.Repository
	runs          *application.RunService
	clock         ports.Clock
	runRenderer   func(domain.Run, summaryadapter.RenderOptions) (string, error)
	loggerProfile logging.Profile
}

func wireApp() (*app, error) {
	settings := viper.New()
	settings.SetEnvPrefix("MCRT")
	if err := settings.BindEnv("runs.path", "MCRT_RUNS_PATH"); err != nil {
		return nil, fmt.Errorf("bind runs path env: %w", err)
	}

	fs := afero.NewOsFs()
	repo, err := tomlrepo.NewRepository(fs, settings)
	if err != nil {
		return nil, fmt.Errorf("wire run repository: %w", err)
	}

	clock := ports.SystemClock{}

	return &app{
		fs:            fs,
		configs:       config.NewLoader(fs),
		atoms:         atomdata.NewLoader(fs),
		repo:          repo,
		runs:          application.NewRunService(repo, clock),
		clock:         clock,
		runRenderer:   summaryadapter.Render,
		loggerProfile: logging.ProfileRuntime,
	}, nil
}

// logger builds the command logger on w. Quiet runs only report warnings.
func (a *app) logger(w io.Writer, quiet bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	cfg := logging.DefaultConfig(a.loggerProfile)
	logging.ApplyEnvOverrides(&cfg, os.Getenv)
	if quiet && cfg.Level < zerolog.WarnLevel {
		cfg.Level = zerolog.WarnLevel
	}
	return logging.Build(cfg, w)
}

// runService returns the history service, or one bound to path when the
// caller picked a run file explicitly.
func (a *app) runService(path string) (*application.RunService, *tomlrepo.Repository, error) {
	if path == "" {
		return a.runs, a.repo, nil
	}

	repo, err := tomlrepo.NewFileRepository(a.fs, path)
	if err != nil {
		return nil, nil, fmt.Errorf("open run file: %w", err)
	}
	return application.NewRunService(repo, a.clock), repo, nil
}

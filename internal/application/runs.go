package application

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bnema/mcrt/internal/domain"
	"github.com/bnema/mcrt/internal/ports"
)

// RunService persists finished runs and serves the run history.
type RunService struct {
	repo  ports.RunRepository
	clock ports.Clock
}

func NewRunService(repo ports.RunRepository, clock ports.Clock) *RunService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &RunService{repo: repo, clock: clock}
}

// Record stores the result of a completed simulation and returns the saved
// run.
func (s *RunService) Record(ctx context.Context, cfg domain.Configuration, result *Result) (domain.Run, error) {
	if result == nil {
		return domain.Run{}, errors.New("record run: nil result")
	}

	now := s.clock.Now().UTC()
	id, err := s.freeID(ctx, newRunID(cfg.Name, now.Format("20060102T150405Z")))
	if err != nil {
		return domain.Run{}, err
	}
	run := domain.Run{
		ID:          id,
		Name:        cfg.Name,
		Fingerprint: cfg.Fingerprint(),
		CreatedAt:   now,
		State:       result.State,
		History:     result.History,
		Spectrum:    result.Spectrum,
		Reabsorbed:  result.Reabsorbed,
		Virtual:     result.Virtual,
	}
	if err := s.repo.Save(ctx, run); err != nil {
		return domain.Run{}, fmt.Errorf("save run: %w", err)
	}

	return run, nil
}

// freeID suffixes id with -2, -3, ... until no stored run carries it.
func (s *RunService) freeID(ctx context.Context, id domain.RunID) (domain.RunID, error) {
	candidate := id
	for n := 2; ; n++ {
		_, err := s.repo.GetByID(ctx, candidate)
		if errors.Is(err, domain.ErrRunNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("check run id: %w", err)
		}
		candidate = domain.RunID(fmt.Sprintf("%s-%d", id, n))
	}
}

func (s *RunService) Get(ctx context.Context, id domain.RunID) (domain.Run, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run by id: %w", err)
	}

	return run, nil
}

// List returns every stored run, newest first.
func (s *RunService) List(ctx context.Context) ([]domain.Run, error) {
	runs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	slices.SortStableFunc(runs, func(a, b domain.Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return runs, nil
}

// Latest returns the newest stored run.
func (s *RunService) Latest(ctx context.Context) (domain.Run, error) {
	runs, err := s.List(ctx)
	if err != nil {
		return domain.Run{}, err
	}
	if len(runs) == 0 {
		return domain.Run{}, domain.ErrRunNotFound
	}

	return runs[0], nil
}

func newRunID(name, stamp string) domain.RunID {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(name))
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "run"
	}
	return domain.RunID(stamp + "-" + slug)
}

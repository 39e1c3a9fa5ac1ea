package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
	"github.com/spec-kit/team-hierarchy-service/internal/events"
	"github.com/spec-kit/team-hierarchy-service/internal/observability"
	"github.com/spec-kit/team-hierarchy-service/internal/persistence"
	"github.com/spec-kit/team-hierarchy-service/internal/repository"
)

// HierarchyDependencies encapsulates collaborators of the hierarchy service.
// Snapshots, Cache, Dispatcher and Metrics are optional.
type HierarchyDependencies struct {
	Source     repository.TeamSourceRepository
	Builder    HierarchyBuilder
	Snapshots  repository.SnapshotRepository
	Cache      persistence.HierarchyCache
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// HierarchyService runs the load, validate, build and filter pipeline.
type HierarchyService struct {
	source     repository.TeamSourceRepository
	validator  *HierarchyValidator
	builder    HierarchyBuilder
	filter     *HierarchyFilter
	snapshots  repository.SnapshotRepository
	cache      persistence.HierarchyCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// HierarchyResult is an assembled, optionally pruned hierarchy.
type HierarchyResult struct {
	RootName   string
	Root       *domain.TeamNode
	Teams      []domain.Team
	Checksum   string
	SnapshotID string
	Query      string
}

// RenderedHierarchy is a JSON hierarchy document ready to be written.
type RenderedHierarchy struct {
	Body       []byte
	SnapshotID string
	Cached     bool
}

// NewHierarchyService constructs the service.
func NewHierarchyService(deps HierarchyDependencies) *HierarchyService {
	builder := deps.Builder
	if builder == nil {
		builder = NewHierarchyBuilder()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HierarchyService{
		source:     deps.Source,
		validator:  NewHierarchyValidator(),
		builder:    builder,
		filter:     NewHierarchyFilter(),
		snapshots:  deps.Snapshots,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Checksum identifies an uploaded source by content.
func Checksum(content []byte) string {
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Execute loads teams from content, validates them, builds the tree and
// prunes it to query when query is non-blank. A successful upload is stored
// as a snapshot when persistence is enabled.
func (s *HierarchyService) Execute(ctx context.Context, content []byte, query string) (*HierarchyResult, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	checksum := Checksum(content)

	result, err := s.execute(ctx, content, checksum, query)
	s.record(err, query != "", time.Since(start), result)
	if err != nil {
		s.publishRejected(ctx, "", checksum, err)
		return nil, err
	}
	return result, nil
}

func (s *HierarchyService) execute(ctx context.Context, content []byte, checksum, query string) (*HierarchyResult, error) {
	teams, err := s.source.Load(ctx, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	rootName, root, err := s.assemble(teams, query)
	if err != nil {
		return nil, err
	}

	result := &HierarchyResult{
		RootName: rootName,
		Root:     root,
		Teams:    teams,
		Checksum: checksum,
		Query:    query,
	}

	if s.snapshots != nil {
		snapshot := &domain.HierarchySnapshot{
			ID:        uuid.NewString(),
			Checksum:  checksum,
			RootName:  rootName,
			TeamCount: len(teams),
		}
		if err := s.snapshots.Create(ctx, snapshot, teams); err != nil {
			return nil, fmt.Errorf("store snapshot: %w", err)
		}
		result.SnapshotID = snapshot.ID
	}

	s.publishBuilt(ctx, result)
	return result, nil
}

// Render is Execute followed by JSON encoding, served from the cache when the
// same content and query were rendered before.
func (s *HierarchyService) Render(ctx context.Context, content []byte, query string) (*RenderedHierarchy, error) {
	query = strings.TrimSpace(query)
	checksum := Checksum(content)

	if body, ok := s.cached(ctx, checksum, query); ok {
		return &RenderedHierarchy{Body: body, Cached: true}, nil
	}

	result, err := s.Execute(ctx, content, query)
	if err != nil {
		return nil, err
	}

	body, err := s.encode(ctx, checksum, query, result)
	if err != nil {
		return nil, err
	}
	return &RenderedHierarchy{Body: body, SnapshotID: result.SnapshotID}, nil
}

// RenderSnapshot rebuilds a stored upload and prunes it to query. Rebuilds
// publish the same events as Execute, carrying the snapshot id.
func (s *HierarchyService) RenderSnapshot(ctx context.Context, id, query string) (*RenderedHierarchy, error) {
	if s.snapshots == nil {
		return nil, domain.ErrSnapshotNotFound
	}
	start := time.Now()
	query = strings.TrimSpace(query)

	snapshot, err := s.snapshots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if body, ok := s.cached(ctx, snapshot.Checksum, query); ok {
		return &RenderedHierarchy{Body: body, SnapshotID: snapshot.ID, Cached: true}, nil
	}

	teams, err := s.snapshots.ListTeams(ctx, snapshot.ID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot teams: %w", err)
	}

	rootName, root, err := s.assemble(teams, query)
	result := &HierarchyResult{
		RootName:   rootName,
		Root:       root,
		Teams:      teams,
		Checksum:   snapshot.Checksum,
		SnapshotID: snapshot.ID,
		Query:      query,
	}
	s.record(err, query != "", time.Since(start), result)
	if err != nil {
		s.publishRejected(ctx, snapshot.ID, snapshot.Checksum, err)
		return nil, err
	}
	s.publishBuilt(ctx, result)

	body, err := s.encode(ctx, snapshot.Checksum, query, result)
	if err != nil {
		return nil, err
	}
	return &RenderedHierarchy{Body: body, SnapshotID: snapshot.ID}, nil
}

// assemble validates, builds and optionally filters. Errors from each stage
// are returned unchanged.
func (s *HierarchyService) assemble(teams []domain.Team, query string) (string, *domain.TeamNode, error) {
	if err := s.validator.Validate(teams); err != nil {
		return "", nil, err
	}

	rootName, root, err := s.builder.Build(teams)
	if err != nil {
		return "", nil, err
	}

	if query != "" {
		root, err = s.filter.FilterByTeam(root, query)
		if err != nil {
			return "", nil, err
		}
		rootName = root.TeamName
	}
	return rootName, root, nil
}

func (s *HierarchyService) encode(ctx context.Context, checksum, query string, result *HierarchyResult) ([]byte, error) {
	body, err := domain.HierarchyDocument{RootName: result.RootName, Root: result.Root}.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode hierarchy: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, checksum, query, body); err != nil {
			s.logger.Warn("hierarchy cache write failed", zap.String("checksum", checksum), zap.Error(err))
		}
	}
	return body, nil
}

func (s *HierarchyService) cached(ctx context.Context, checksum, query string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	body, ok, err := s.cache.Get(ctx, checksum, query)
	if err != nil {
		s.logger.Warn("hierarchy cache read failed", zap.String("checksum", checksum), zap.Error(err))
		return nil, false
	}
	s.metrics.RecordCacheLookup(ok)
	return body, ok
}

func (s *HierarchyService) record(err error, filtered bool, elapsed time.Duration, result *HierarchyResult) {
	outcome := observability.OutcomeSuccess
	var (
		verr      *domain.ValidationError
		headerErr *domain.CSVHeaderError
	)
	switch {
	case err == nil:
	case errors.As(err, &verr), errors.As(err, &headerErr), errors.Is(err, domain.ErrInvalidHierarchy):
		outcome = observability.OutcomeInvalid
	case errors.Is(err, domain.ErrTeamNotFound):
		outcome = observability.OutcomeTeamNotFound
	default:
		outcome = observability.OutcomeError
	}

	teams := 0
	if result != nil {
		teams = len(result.Teams)
	}
	s.metrics.RecordHierarchy(outcome, filtered, elapsed, teams)
}

func (s *HierarchyService) publishBuilt(ctx context.Context, result *HierarchyResult) {
	if s.dispatcher == nil {
		return
	}
	now := time.Now().UTC()
	s.publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventHierarchyBuilt,
		SnapshotID: result.SnapshotID,
		Checksum:   result.Checksum,
		Timestamp:  now,
		Payload:    events.HierarchyBuiltPayload{RootName: result.RootName, TeamCount: len(result.Teams)},
	})
	if result.Query != "" {
		s.publish(ctx, events.Event{
			ID:         uuid.NewString(),
			Type:       events.EventHierarchyFiltered,
			SnapshotID: result.SnapshotID,
			Checksum:   result.Checksum,
			Timestamp:  now,
			Payload: events.HierarchyFilteredPayload{
				RootName:   result.RootName,
				Team:       result.Query,
				PrunedSize: result.Root.Size(),
			},
		})
	}
}

func (s *HierarchyService) publishRejected(ctx context.Context, snapshotID, checksum string, err error) {
	if s.dispatcher == nil {
		return
	}
	payload := events.HierarchyRejectedPayload{Reason: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		payload.Violations = verr.Errors
	}
	s.publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventHierarchyRejected,
		SnapshotID: snapshotID,
		Checksum:   checksum,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	})
}

func (s *HierarchyService) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

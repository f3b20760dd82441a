package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"atlas-graph/application/commands"
	"atlas-graph/application/commands/bus"
	"atlas-graph/application/ports"
	"atlas-graph/application/sagas"
	"atlas-graph/domain/config"
	"atlas-graph/domain/core/entities"
	"atlas-graph/domain/core/validators"
	"atlas-graph/domain/core/valueobjects"
	"atlas-graph/domain/events"
	pkgerrors "atlas-graph/pkg/errors"
)

// MergeNodesHandler consolidates several nodes into one surviving node,
// redirecting every edge that touched a non-surviving source. It is the
// only writer allowed to deactivate nodes while rewriting edges, so it
// serializes against competing merges with an advisory lock keyed by the
// sorted source-id set and applies the writes as a compensating saga.
type MergeNodesHandler struct {
	nodeRepo  ports.NodeRepository
	edgeRepo  ports.EdgeRepository
	auditRepo ports.AuditLogRepository
	validator *validators.MergeValidator
	lock      ports.DistributedLock
	eventBus  ports.EventBus
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewMergeNodesHandler creates a new merge handler
func NewMergeNodesHandler(
	nodeRepo ports.NodeRepository,
	edgeRepo ports.EdgeRepository,
	auditRepo ports.AuditLogRepository,
	validator *validators.MergeValidator,
	lock ports.DistributedLock,
	eventBus ports.EventBus,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *MergeNodesHandler {
	return &MergeNodesHandler{
		nodeRepo:  nodeRepo,
		edgeRepo:  edgeRepo,
		auditRepo: auditRepo,
		validator: validator,
		lock:      lock,
		eventBus:  eventBus,
		cfg:       cfg,
		logger:    logger,
	}
}

// edgeUndo remembers an edge's pre-merge endpoints and activity so a
// failed saga can put it back.
type edgeUndo struct {
	edge      *entities.Edge
	sourceID  valueobjects.NodeID
	targetID  valueobjects.NodeID
	wasActive bool
}

// Handle executes the merge command and returns a MergeResult.
func (h *MergeNodesHandler) Handle(ctx context.Context, cmd bus.Command) (interface{}, error) {
	mergeCmd, ok := cmd.(commands.MergeNodesCommand)
	if !ok {
		return nil, pkgerrors.NewInternalError(fmt.Sprintf("unexpected command type %T", cmd))
	}

	if err := h.validator.ValidateSources(mergeCmd.SourceNodeIDs); err != nil {
		return nil, err
	}
	strategy := commands.MergeStrategy(mergeCmd.Strategy)
	if !strategy.IsValid() {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown merge strategy %q", mergeCmd.Strategy))
	}

	sourceIDs := make([]valueobjects.NodeID, len(mergeCmd.SourceNodeIDs))
	for i, raw := range mergeCmd.SourceNodeIDs {
		id, err := valueobjects.NewNodeIDFromString(raw)
		if err != nil {
			return nil, pkgerrors.MergeSourcesInvalid(fmt.Sprintf("invalid source node id %q", raw))
		}
		sourceIDs[i] = id
	}

	// Exclusive access to all sources and their edges for the duration of
	// the merge. A concurrent merge over any overlapping sorted id set
	// contends on the same key.
	lockHandle, err := h.lock.Acquire(ctx, mergeLockResource(mergeCmd.SourceNodeIDs), h.cfg.MergeLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := lockHandle.Release(ctx); releaseErr != nil {
			h.logger.Warn("Failed to release merge lock",
				zap.String("resource", lockHandle.Resource()),
				zap.Error(releaseErr),
			)
		}
	}()

	sources, err := h.loadSources(ctx, sourceIDs)
	if err != nil {
		return nil, err
	}

	touched, err := h.edgeRepo.GetByNodeIDs(ctx, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges for merge: %w", err)
	}
	// Deterministic processing order: the oldest relationship wins a
	// duplicate contest.
	sort.Slice(touched, func(i, j int) bool {
		if touched[i].CreatedAt().Equal(touched[j].CreatedAt()) {
			return touched[i].ID().String() < touched[j].ID().String()
		}
		return touched[i].CreatedAt().Before(touched[j].CreatedAt())
	})

	survivor, created, absorbed, err := h.buildSurvivor(strategy, mergeCmd.NewLabel, sources)
	if err != nil {
		return nil, err
	}

	mergedSet := make(map[valueobjects.NodeID]bool, len(absorbed))
	for _, node := range absorbed {
		mergedSet[node.ID()] = true
	}

	undos, preserved, removed, err := h.redirectEdges(touched, mergedSet, survivor.ID(), mergeCmd.PreserveEdges)
	if err != nil {
		return nil, err
	}

	mergedIDs := make([]string, len(absorbed))
	for i, node := range absorbed {
		mergedIDs[i] = node.ID().String()
	}

	actor := actorOrSystem(mergeCmd.Actor)
	entry := entities.NewAuditEntry(
		events.EventNodesMerged,
		entities.EntityKindNode,
		survivor.ID().String(),
		actor,
		nil,
		entities.NodeStateMap(survivor),
	).WithMetadata(map[string]interface{}{
		"sourceNodeIds":  mergeCmd.SourceNodeIDs,
		"strategy":       mergeCmd.Strategy,
		"edgesPreserved": preserved,
		"edgesRemoved":   removed,
	})

	if err := h.persist(ctx, survivor, created, absorbed, undos, entry); err != nil {
		return nil, err
	}

	publishEvents(ctx, h.eventBus, h.logger, eventSourcesForMerge(survivor, absorbed, undos)...)
	mergedEvent := events.NewNodesMerged(survivor.ID(), sourceIDs, preserved, removed, entry.Timestamp)
	if err := h.eventBus.Publish(ctx, mergedEvent); err != nil {
		h.logger.Warn("Failed to publish merge event", zap.Error(err))
	}

	h.logger.Info("Nodes merged",
		zap.String("survivorId", survivor.ID().String()),
		zap.Strings("sourceNodeIds", mergeCmd.SourceNodeIDs),
		zap.String("strategy", mergeCmd.Strategy),
		zap.Int("edgesPreserved", preserved),
		zap.Int("edgesRemoved", removed),
		zap.String("actor", actor),
	)

	return &commands.MergeResult{
		MergedNode:     survivor,
		MergedNodeIDs:  mergedIDs,
		EdgesPreserved: preserved,
		EdgesRemoved:   removed,
	}, nil
}

// loadSources fetches every source node in input order and rejects the
// merge if any is missing or inactive.
func (h *MergeNodesHandler) loadSources(ctx context.Context, sourceIDs []valueobjects.NodeID) ([]*entities.Node, error) {
	batch, err := h.nodeRepo.GetBatch(ctx, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load merge sources: %w", err)
	}

	byID := make(map[valueobjects.NodeID]*entities.Node, len(batch))
	for _, node := range batch {
		byID[node.ID()] = node
	}

	sources := make([]*entities.Node, len(sourceIDs))
	for i, id := range sourceIDs {
		node, found := byID[id]
		if !found {
			return nil, pkgerrors.MergeSourcesInvalid(fmt.Sprintf("source node %s does not exist", id))
		}
		if !node.IsActive() {
			return nil, pkgerrors.MergeSourcesInvalid(fmt.Sprintf("source node %s is inactive", id))
		}
		sources[i] = node
	}

	return sources, nil
}

// buildSurvivor resolves the surviving node per the strategy and folds
// the sources into it in input order, so later sources override earlier
// ones on property key collisions.
func (h *MergeNodesHandler) buildSurvivor(
	strategy commands.MergeStrategy,
	newLabel string,
	sources []*entities.Node,
) (survivor *entities.Node, created bool, absorbed []*entities.Node, err error) {
	switch strategy {
	case commands.MergeStrategyCreateNew:
		labelText := strings.TrimSpace(newLabel)
		if labelText == "" {
			labelText = sources[0].Label().String()
		}
		label, labelErr := valueobjects.NewLabel(labelText)
		if labelErr != nil {
			return nil, false, nil, pkgerrors.NewValidationError(labelErr.Error())
		}

		confidence := sources[0].Confidence().Value()
		survivor, err = entities.NewNodeWithConfig(sources[0].Type(), label, entities.NodeAttributes{
			Confidence: &confidence,
		}, h.cfg)
		if err != nil {
			return nil, false, nil, err
		}
		created = true
		absorbed = sources

	case commands.MergeStrategyMergeIntoFirst:
		survivor = sources[0]
		absorbed = sources[1:]

	default:
		return nil, false, nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown merge strategy %q", strategy))
	}

	for _, source := range absorbed {
		if err := survivor.AbsorbMergeSource(source); err != nil {
			return nil, false, nil, err
		}
	}

	return survivor, created, absorbed, nil
}

// redirectEdges rewrites each touched edge in memory and decides its
// fate. Every distinct touched edge ends up either preserved (active,
// attached to the survivor) or removed (deactivated as a collapsed
// self-loop or, when preserveEdges is off, a duplicate).
func (h *MergeNodesHandler) redirectEdges(
	touched []*entities.Edge,
	mergedSet map[valueobjects.NodeID]bool,
	survivorID valueobjects.NodeID,
	preserveEdges bool,
) (undos []edgeUndo, preserved, removed int, err error) {
	seen := make(map[string]bool)

	// Edges already attached only to the survivor stay as they are and
	// win any duplicate contest against redirected edges.
	for _, edge := range touched {
		if mergedSet[edge.SourceID()] || mergedSet[edge.TargetID()] {
			continue
		}
		seen[mergeDuplicateKey(edge, survivorID)] = true
		preserved++
	}

	for _, edge := range touched {
		if !mergedSet[edge.SourceID()] && !mergedSet[edge.TargetID()] {
			continue
		}

		undos = append(undos, edgeUndo{
			edge:      edge,
			sourceID:  edge.SourceID(),
			targetID:  edge.TargetID(),
			wasActive: edge.IsActive(),
		})

		if mergedSet[edge.SourceID()] {
			if err := edge.RedirectEndpoint(edge.SourceID(), survivorID); err != nil {
				return nil, 0, 0, err
			}
		}
		if mergedSet[edge.TargetID()] {
			if err := edge.RedirectEndpoint(edge.TargetID(), survivorID); err != nil {
				return nil, 0, 0, err
			}
		}

		// An edge between two merged nodes collapses to a self-loop and
		// carries no information once they are one node.
		if edge.IsSelfLoop() {
			edge.Deactivate()
			removed++
			continue
		}

		key := mergeDuplicateKey(edge, survivorID)
		if !preserveEdges && seen[key] {
			edge.Deactivate()
			removed++
			continue
		}
		seen[key] = true
		preserved++
	}

	return undos, preserved, removed, nil
}

// persist applies the merge as a compensating saga: survivor first, then
// edges, then source deactivation, then the audit entry. A failure walks
// the completed steps backwards.
func (h *MergeNodesHandler) persist(
	ctx context.Context,
	survivor *entities.Node,
	created bool,
	absorbed []*entities.Node,
	undos []edgeUndo,
	entry *entities.AuditEntry,
) error {
	var persistedEdges []edgeUndo
	var deactivated []*entities.Node

	saga := sagas.NewSaga("merge_nodes", h.logger)

	saga.AddCompensableStep("persist_survivor",
		func(ctx context.Context) error {
			var err error
			if created {
				err = h.nodeRepo.Save(ctx, survivor)
			} else {
				err = h.nodeRepo.Update(ctx, survivor)
			}
			if err != nil {
				return err
			}
			survivor.MarkPersisted()
			return nil
		},
		func(ctx context.Context) error {
			if !created {
				// Absorbed fields are additive; leaving them on the
				// survivor is harmless.
				return nil
			}
			if survivor.Deactivate() {
				return h.nodeRepo.Update(ctx, survivor)
			}
			return nil
		},
	)

	saga.AddCompensableStep("redirect_edges",
		func(ctx context.Context) error {
			for _, undo := range undos {
				if err := h.edgeRepo.Update(ctx, undo.edge); err != nil {
					return err
				}
				undo.edge.MarkPersisted()
				persistedEdges = append(persistedEdges, undo)
			}
			return nil
		},
		func(ctx context.Context) error {
			for _, undo := range persistedEdges {
				undo.edge.RestoreEndpoints(undo.sourceID, undo.targetID)
				if undo.wasActive && !undo.edge.IsActive() {
					undo.edge.Reactivate()
				}
				if err := h.edgeRepo.Update(ctx, undo.edge); err != nil {
					return err
				}
				undo.edge.MarkPersisted()
			}
			return nil
		},
	)

	saga.AddCompensableStep("deactivate_sources",
		func(ctx context.Context) error {
			for _, node := range absorbed {
				if !node.Deactivate() {
					continue
				}
				if err := h.nodeRepo.Update(ctx, node); err != nil {
					return err
				}
				node.MarkPersisted()
				deactivated = append(deactivated, node)
			}
			return nil
		},
		func(ctx context.Context) error {
			for _, node := range deactivated {
				if node.Reactivate() {
					if err := h.nodeRepo.Update(ctx, node); err != nil {
						return err
					}
					node.MarkPersisted()
				}
			}
			return nil
		},
	)

	saga.AddStep("append_audit", func(ctx context.Context) error {
		return h.auditRepo.Append(ctx, entry)
	})

	return saga.Execute(ctx)
}

// mergeDuplicateKey identifies the relationship an edge represents once
// attached to the survivor: same type, same other endpoint.
func mergeDuplicateKey(edge *entities.Edge, survivorID valueobjects.NodeID) string {
	return string(edge.Type()) + "|" + edge.OtherEnd(survivorID).String()
}

// mergeLockResource derives the advisory lock key from the sorted
// source-id set so overlapping merges contend deterministically.
func mergeLockResource(sourceIDs []string) string {
	sorted := make([]string, len(sourceIDs))
	copy(sorted, sourceIDs)
	sort.Strings(sorted)
	return "merge:" + strings.Join(sorted, ",")
}

func eventSourcesForMerge(survivor *entities.Node, absorbed []*entities.Node, undos []edgeUndo) []eventSource {
	sources := make([]eventSource, 0, len(absorbed)+len(undos)+1)
	sources = append(sources, survivor)
	for _, node := range absorbed {
		sources = append(sources, node)
	}
	for _, undo := range undos {
		sources = append(sources, undo.edge)
	}
	return sources
}

// Package geo provides read access to the administrative-area tree:
// validation, descendant expansion, and ancestor chains.
package geo

import (
	"context"
	"fmt"
	"sort"

	"geopulse/pkg/logging"
	"geopulse/pkg/models"
)

// ValidationError reports geo-unit IDs that do not exist.
type ValidationError struct {
	MissingIDs []int64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unknown geo unit ids: %v", e.MissingIDs)
}

// Service wraps the store with tree traversal operations.
type Service struct {
	store  *Store
	logger logging.Logger
}

func NewService(store *Store, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Validate checks that every ID exists. Returns a *ValidationError
// listing the missing IDs when any do not.
func (s *Service) Validate(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	units, err := s.store.UnitsByIDs(ctx, ids)
	if err != nil {
		return err
	}
	found := make(map[int64]bool, len(units))
	for _, u := range units {
		found[u.ID] = true
	}
	var missing []int64
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !found[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	if len(missing) > 0 {
		return &ValidationError{MissingIDs: missing}
	}
	return nil
}

// ExpandWithDescendants returns the root IDs plus every descendant,
// deduplicated and sorted. The traversal is an iterative frontier walk;
// a node already visited is never requeued, so a corrupt parent link
// cannot loop.
func (s *Service) ExpandWithDescendants(ctx context.Context, rootIDs []int64) ([]int64, error) {
	if len(rootIDs) == 0 {
		return nil, nil
	}

	visited := make(map[int64]bool, len(rootIDs))
	frontier := make([]int64, 0, len(rootIDs))
	for _, id := range rootIDs {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	for len(frontier) > 0 {
		children, err := s.store.ChildrenOf(ctx, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]int64, 0, len(children))
		for _, child := range children {
			if !visited[child.ID] {
				visited[child.ID] = true
				next = append(next, child.ID)
			}
		}
		frontier = next
	}

	out := make([]int64, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// maxTreeDepth bounds the subtree to three child levels below the root,
// which covers state → district → constituency.
const maxTreeDepth = 3

// Hierarchy returns a unit with its descendant subtree for display,
// nested up to maxTreeDepth levels. The walk is level by level over
// ChildrenOf; a unit already placed in the tree is never placed again,
// so a corrupt parent link cannot loop.
func (s *Service) Hierarchy(ctx context.Context, id int64) (*models.GeoUnitTree, error) {
	unit, err := s.store.UnitByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, &ValidationError{MissingIDs: []int64{id}}
	}

	root := &models.GeoUnitTree{Unit: *unit}
	nodes := map[int64]*models.GeoUnitTree{id: root}
	frontier := []int64{id}
	for depth := 0; depth < maxTreeDepth && len(frontier) > 0; depth++ {
		children, err := s.store.ChildrenOf(ctx, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]int64, 0, len(children))
		for _, child := range children {
			if _, seen := nodes[child.ID]; seen {
				s.logger.WithFields(logging.Fields{
					"geo_unit_id": child.ID,
				}).Warn("Geo unit appears twice in subtree, parent links may be cyclic")
				continue
			}
			if child.ParentID == nil {
				continue
			}
			parent, ok := nodes[*child.ParentID]
			if !ok {
				continue
			}
			node := &models.GeoUnitTree{Unit: child}
			parent.Children = append(parent.Children, node)
			nodes[child.ID] = node
			next = append(next, child.ID)
		}
		frontier = next
	}
	return root, nil
}

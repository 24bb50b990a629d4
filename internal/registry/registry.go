// Package registry joins entity records to node records via the stable
// identifier chain entity -> device container -> hardware identifier.
// Name-based matching is deliberately absent: guessing an owning node from
// an entity's name silently drops valid entities, so an unresolvable chain
// means the entity is counted and discarded, never attached to a guess.
package registry

import (
	"sort"

	"meshview/internal/domain"
)

// Result is the node -> entities mapping produced by one match pass
type Result struct {
	// Entities maps IEEE to that node's entities, each list ordered by
	// entity identifier.
	Entities map[string][]domain.Entity
	// Unmatched counts entities whose chain could not be resolved
	Unmatched int
}

// Match resolves every entity's owning node. It builds the device and node
// indexes once, then makes a single pass over the entities, so the whole
// join is linear in nodes + entities.
func Match(nodes []domain.Node, entries []domain.RegistryEntry, entities []domain.Entity) Result {
	byIEEE := make(map[string]bool, len(nodes))
	for i := range nodes {
		byIEEE[nodes[i].IEEE] = true
	}

	deviceToIEEE := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.ID == "" || entry.IEEE == "" {
			continue
		}
		deviceToIEEE[entry.ID] = entry.IEEE
	}

	result := Result{Entities: make(map[string][]domain.Entity)}

	for _, entity := range entities {
		ieee, ok := deviceToIEEE[entity.DeviceID]
		if !ok || !byIEEE[ieee] {
			result.Unmatched++
			continue
		}
		result.Entities[ieee] = append(result.Entities[ieee], entity)
	}

	for ieee := range result.Entities {
		list := result.Entities[ieee]
		sort.Slice(list, func(i, j int) bool {
			return list[i].EntityID < list[j].EntityID
		})
	}

	return result
}

package trust

// TargetDescription resolves targetPath to its cryptographic description
// by a preorder traversal of the delegation graph, beginning at the
// top-level targets role:
//
//   - A role's own directly-listed targets take precedence over its
//     delegations.
//   - Delegations are consulted in order; the first one to produce a
//     description wins.
//   - A delegation whose child was never admitted (or was admitted but
//     failed verification) is treated as TargetUnavailable down that
//     branch.
//   - A terminating delegation that matches targetPath but yields
//     TargetUnavailable stops the search at this level entirely, even if
//     later sibling delegations might otherwise have matched.
//
// TargetDescription never mutates the database.
func (db *Database) TargetDescription(targetPath string) (TargetDescription, error) {
	if db.targets == nil {
		return TargetDescription{}, &MetadataNotFoundError{Path: topLevelTargetsPath}
	}
	visited := map[string]struct{}{topLevelTargetsPath: {}}
	return db.resolveFrom(topLevelTargetsPath, &db.targets.Signed, visited, targetPath)
}

func (db *Database) resolveFrom(currentPath string, signed *SignedTargets, visited map[string]struct{}, targetPath string) (TargetDescription, error) {
	if td, ok := signed.Targets[targetPath]; ok {
		return td, nil
	}
	if signed.Delegations == nil {
		return TargetDescription{}, ErrTargetUnavailable
	}

	for _, record := range signed.Delegations.Roles {
		if !anyPathMatches(record.Paths, targetPath) {
			continue
		}

		if _, seen := visited[record.Name]; seen {
			// Cycle in the delegation graph: treat this branch as
			// unavailable without recursing again.
			if record.Terminating {
				return TargetDescription{}, ErrTargetUnavailable
			}
			continue
		}

		child, ok := db.edges[edgeKey{parent: currentPath, child: record.Name}]
		if !ok {
			// Never admitted through this exact edge, or admission
			// through this edge failed verification.
			if record.Terminating {
				return TargetDescription{}, ErrTargetUnavailable
			}
			continue
		}

		nextVisited := make(map[string]struct{}, len(visited)+1)
		for k := range visited {
			nextVisited[k] = struct{}{}
		}
		nextVisited[record.Name] = struct{}{}

		td, err := db.resolveFrom(record.Name, &child.targets.Signed, nextVisited, targetPath)
		if err == nil {
			return td, nil
		}
		if err != ErrTargetUnavailable {
			return TargetDescription{}, err
		}
		if record.Terminating {
			return TargetDescription{}, ErrTargetUnavailable
		}
	}

	return TargetDescription{}, ErrTargetUnavailable
}

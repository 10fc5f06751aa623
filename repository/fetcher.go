package repository

import (
	"encoding/json"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/kolide/trustdb/trust"
)

// unmarshalSigned decodes the "signed" payload out of a raw TUF envelope
// without verifying anything; it exists only so the Fetcher can discover
// further delegation records to walk, the actual trust decision having
// already been made by trust.Database.UpdateDelegation.
func unmarshalSigned(raw []byte, v interface{}) error {
	var wire struct {
		Signed json.RawMessage `json:"signed"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return errors.Wrap(err, "decoding envelope for delegation discovery")
	}
	return json.Unmarshal(wire.Signed, v)
}

// Fetcher drives one full TUF update cycle against a Provider: fetch
// timestamp, snapshot, top-level targets, then walk the delegation graph
// breadth-first admitting whatever delegated roles the freshly-admitted
// parents name, in that mandated dependency order. Every admitted role's
// raw bytes are hydrated back to storage via saver so a later process can
// resume from them.
type Fetcher struct {
	provider Provider
	saver    roleSaver
	logger   log.Logger
}

// NewFetcher builds a Fetcher. logger may be nil, in which case a no-op
// logger is used.
func NewFetcher(provider Provider, saver roleSaver, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Fetcher{provider: provider, saver: saver, logger: logger}
}

// Refresh fetches and admits timestamp, snapshot, top-level targets, and
// every delegated role reachable from the admitted targets graph, into db.
// It returns the set of roles whose admission actually changed the
// database's trusted state.
func (f *Fetcher) Refresh(db *trust.Database) ([]string, error) {
	var updated []string

	logger := log.With(f.logger, "component", "fetcher")

	rawTimestamp, err := f.provider.FetchRole("timestamp")
	if err != nil {
		return updated, errors.Wrap(err, "fetching timestamp")
	}
	outcome, err := db.UpdateTimestamp(rawTimestamp)
	if err != nil {
		level.Error(logger).Log("role", "timestamp", "err", err)
		return updated, errors.Wrap(err, "admitting timestamp")
	}
	if outcome == trust.Updated {
		updated = append(updated, "timestamp")
		if err := f.saver.SaveRole("timestamp", rawTimestamp); err != nil {
			level.Error(logger).Log("role", "timestamp", "msg", "persisting failed", "err", err)
		}
	}

	rawSnapshot, err := f.provider.FetchRole("snapshot")
	if err != nil {
		return updated, errors.Wrap(err, "fetching snapshot")
	}
	outcome, err = db.UpdateSnapshot(rawSnapshot)
	if err != nil {
		level.Error(logger).Log("role", "snapshot", "err", err)
		return updated, errors.Wrap(err, "admitting snapshot")
	}
	if outcome == trust.Updated {
		updated = append(updated, "snapshot")
		if err := f.saver.SaveRole("snapshot", rawSnapshot); err != nil {
			level.Error(logger).Log("role", "snapshot", "msg", "persisting failed", "err", err)
		}
	}

	rawTargets, err := f.provider.FetchRole("targets")
	if err != nil {
		return updated, errors.Wrap(err, "fetching targets")
	}
	outcome, err = db.UpdateTargets(rawTargets)
	if err != nil {
		level.Error(logger).Log("role", "targets", "err", err)
		return updated, errors.Wrap(err, "admitting targets")
	}
	if outcome == trust.Updated {
		updated = append(updated, "targets")
		if err := f.saver.SaveRole("targets", rawTargets); err != nil {
			level.Error(logger).Log("role", "targets", "msg", "persisting failed", "err", err)
		}
	}

	if env := db.TrustedTargets(); env != nil {
		more, err := f.admitDelegations(db, logger, "targets", &env.Signed)
		if err != nil {
			return updated, err
		}
		updated = append(updated, more...)
	}

	level.Info(logger).Log("msg", "refresh complete", "updated", fmt.Sprint(updated))
	return updated, nil
}

// admitDelegations walks parentName's delegation records breadth-first,
// fetching and admitting each named child role that hasn't already been
// visited in this call.
func (f *Fetcher) admitDelegations(db *trust.Database, logger log.Logger, parentName string, parent *trust.SignedTargets) ([]string, error) {
	if parent.Delegations == nil {
		return nil, nil
	}

	var updated []string
	visited := map[string]struct{}{}
	type pending struct {
		parent string
		name   string
	}
	queue := []pending{}
	for _, rec := range parent.Delegations.Roles {
		queue = append(queue, pending{parent: parentName, name: rec.Name})
	}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, seen := visited[next.parent+"/"+next.name]; seen {
			continue
		}
		visited[next.parent+"/"+next.name] = struct{}{}

		raw, err := f.provider.FetchRole(next.name)
		if err == ErrNotFound {
			level.Debug(logger).Log("role", next.name, "msg", "not published, skipping")
			continue
		}
		if err != nil {
			return updated, errors.Wrapf(err, "fetching delegated role %q", next.name)
		}
		outcome, err := db.UpdateDelegation(next.parent, next.name, raw)
		if err != nil {
			level.Error(logger).Log("role", next.name, "parent", next.parent, "err", err)
			continue
		}
		if outcome == trust.Updated {
			updated = append(updated, next.name)
			if err := f.saver.SaveRole(next.name, raw); err != nil {
				level.Error(logger).Log("role", next.name, "msg", "persisting failed", "err", err)
			}
		}

		var child trust.SignedTargets
		if err := unmarshalSigned(raw, &child); err != nil {
			continue
		}
		if child.Delegations != nil {
			for _, rec := range child.Delegations.Roles {
				queue = append(queue, pending{parent: next.name, name: rec.Name})
			}
		}
	}
	return updated, nil
}

// Package replication implements the gateway's replication engine: a
// Storage implementation that fans each operation out across an ordered
// vector of backend Storage handles according to a configured read mode
// and write mode.
package replication

import (
	"fmt"
	"log/slog"

	"github.com/replicagate/replicagate/internal/config"
	gwerrors "github.com/replicagate/replicagate/internal/errors"
	"github.com/replicagate/replicagate/internal/storage"
)

// Engine dispatches Storage operations over backends. Strategies are
// independent per operation; there is no cross-operation state and no
// key-level coordination between concurrent requests.
type Engine struct {
	backends     []storage.Storage
	primaryIndex int
	readMode     config.ReadMode
	writeMode    config.WriteMode
}

// New constructs an Engine over backends, with primaryIndex selecting
// which one is primary. backends must be non-empty; callers validate this
// before construction (the config loader enforces a non-empty list).
func New(backends []storage.Storage, primaryIndex int, readMode config.ReadMode, writeMode config.WriteMode) *Engine {
	slog.Info("replication engine initialized",
		"backends", len(backends), "primary_index", primaryIndex,
		"read_mode", readMode, "write_mode", writeMode)

	return &Engine{
		backends:     backends,
		primaryIndex: primaryIndex,
		readMode:     readMode,
		writeMode:    writeMode,
	}
}

// Name identifies the engine itself when it is composed as a Storage, e.g.
// in tests that wrap an Engine behind another Storage consumer.
func (e *Engine) Name() string { return "replication-engine" }

// PrimaryIndex returns the index of the current primary backend.
func (e *Engine) PrimaryIndex() int { return e.primaryIndex }

// SetPrimaryIndex overrides the primary backend. The field is not
// synchronized, so it is only safe to call before the engine serves its
// first request. cmd/gateway does not call it: it passes the index chosen by
// ElectPrimary straight to New.
func (e *Engine) SetPrimaryIndex(idx int) { e.primaryIndex = idx }

func (e *Engine) primary() storage.Storage {
	return e.backends[e.primaryIndex]
}

// otherBackends returns every backend except the primary, in vector order.
func (e *Engine) otherBackends() []indexedBackend {
	others := make([]indexedBackend, 0, len(e.backends)-1)
	for i, b := range e.backends {
		if i != e.primaryIndex {
			others = append(others, indexedBackend{index: i, backend: b})
		}
	}
	return others
}

type indexedBackend struct {
	index   int
	backend storage.Storage
}

// logBackendResult applies the §4.3.5 disposition: INFO for write success,
// WARN for a real error, DEBUG for a not-found encountered while racing.
func logBackendResult(operation, backendName string, err error, isRace bool) {
	switch {
	case err == nil:
		slog.Info("backend operation succeeded", "operation", operation, "backend", backendName)
	case gwerrors.IsNoSuch(err) && isRace:
		slog.Debug("backend returned not-found", "operation", operation, "backend", backendName, "error", err)
	default:
		slog.Warn("backend operation failed", "operation", operation, "backend", backendName, "error", err)
	}
}

func internalErrorf(format string, args ...any) error {
	return gwerrors.ErrInternalError.WithDetail(fmt.Sprintf(format, args...))
}

var _ storage.Storage = (*Engine)(nil)

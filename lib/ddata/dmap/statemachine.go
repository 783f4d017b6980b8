package dmap

import (
	"encoding/gob"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ValentinKolb/dACK/lib/ddata"
	"github.com/ValentinKolb/dACK/lib/ddata/dmap/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// MultimapStateMachine is the replicated multimap state machine for
// Dragonboat RAFT: address -> set of encoded literals, plus a revision
// counter bumped on every effective mutation (used for change polling).
type MultimapStateMachine struct {
	replicaID uint64
	shardID   uint64

	mu       sync.RWMutex
	data     map[string]map[string]struct{}
	revision uint64
}

// CreateStateMachineFactory returns the factory dragonboat uses to create
// the multimap state machine for a node host.
func CreateStateMachineFactory() func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &MultimapStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			data:      make(map[string]map[string]struct{}),
		}
	}
}

// Lookup handles read-only queries.
func (fsm *MultimapStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, ddata.NewError(ddata.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	fsm.mu.RLock()
	defer fsm.mu.RUnlock()

	switch q.Type {
	case internal.QueryTSnapshot:
		return internal.SnapshotResult{
			Revision: fsm.revision,
			Snapshot: fsm.export(),
		}, nil
	case internal.QueryTRevision:
		return fsm.revision, nil
	default:
		return nil, ddata.NewError(ddata.RetCInternalError, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update applies the mutation commands of a raft log batch.
func (fsm *MultimapStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	fsm.mu.Lock()
	defer fsm.mu.Unlock()

	for idx, e := range entries {
		cmd := internal.Command{}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = sm.Result{
				Value: uint64(ddata.RetCInternalError),
				Data:  []byte(fmt.Sprintf("failed to deserialize command: %v", err)),
			}
			continue
		}

		var changed bool
		switch cmd.Type {
		case internal.CommandTMerge:
			changed = fsm.applyMerge(cmd)
		case internal.CommandTPrune:
			changed = fsm.applyPrune(cmd.Address)
		default:
			entries[idx].Result = sm.Result{
				Value: uint64(ddata.RetCInternalError),
				Data:  []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type)),
			}
			continue
		}

		if changed {
			fsm.revision++
		}
		entries[idx].Result = sm.Result{
			Value: uint64(ddata.RetCSuccess),
			Data:  []byte(fmt.Sprintf("%s: address=%s", cmd.Type, cmd.Address)),
		}
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("State machine batch of %d entries took %.2fms",
			len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

// applyMerge merges a delta into one address key. Deletes are applied
// before inserts so a literal present in both survives.
func (fsm *MultimapStateMachine) applyMerge(cmd internal.Command) bool {
	literals, ok := fsm.data[cmd.Address]
	if !ok {
		literals = make(map[string]struct{})
		fsm.data[cmd.Address] = literals
	}

	changed := false
	for _, literal := range cmd.Deletes {
		if _, ok := literals[literal]; ok {
			delete(literals, literal)
			changed = true
		}
	}
	for _, literal := range cmd.Inserts {
		if _, ok := literals[literal]; !ok {
			literals[literal] = struct{}{}
			changed = true
		}
	}

	if len(literals) == 0 {
		delete(fsm.data, cmd.Address)
	}
	return changed
}

func (fsm *MultimapStateMachine) applyPrune(address string) bool {
	if _, ok := fsm.data[address]; !ok {
		return false
	}
	delete(fsm.data, address)
	return true
}

// export deep-copies the map into the listener-facing snapshot form.
// Callers must hold at least a read lock.
func (fsm *MultimapStateMachine) export() ddata.Snapshot {
	snapshot := make(ddata.Snapshot, len(fsm.data))
	for address, literals := range fsm.data {
		values := make([]string, 0, len(literals))
		for literal := range literals {
			values = append(values, literal)
		}
		snapshot[address] = values
	}
	return snapshot
}

// --------------------------------------------------------------------------
// Snapshotting
// --------------------------------------------------------------------------

// persistedState is the gob-encoded on-disk snapshot form.
type persistedState struct {
	Revision uint64
	Data     map[string][]string
}

// PrepareSnapshot is not used, the mutex makes the export itself consistent.
func (fsm *MultimapStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot writes the full map state to the writer.
func (fsm *MultimapStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	fsm.mu.RLock()
	state := persistedState{
		Revision: fsm.revision,
		Data:     fsm.export(),
	}
	fsm.mu.RUnlock()

	return gob.NewEncoder(writer).Encode(state)
}

// RecoverFromSnapshot replaces the map state with the persisted one.
func (fsm *MultimapStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	var state persistedState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return err
	}

	fsm.mu.Lock()
	defer fsm.mu.Unlock()

	fsm.revision = state.Revision
	fsm.data = make(map[string]map[string]struct{}, len(state.Data))
	for address, values := range state.Data {
		literals := make(map[string]struct{}, len(values))
		for _, literal := range values {
			literals[literal] = struct{}{}
		}
		fsm.data[address] = literals
	}
	return nil
}

// Close performs any necessary cleanup.
func (fsm *MultimapStateMachine) Close() error {
	return nil
}

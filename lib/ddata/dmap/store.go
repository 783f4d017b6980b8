package dmap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dACK/lib/ddata"
	"github.com/ValentinKolb/dACK/lib/ddata/dmap/internal"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("dmap")
)

// DefaultPollInterval is the revision poll period used when none is given.
const DefaultPollInterval = 500 * time.Millisecond

// mapImpl is the concrete implementation of the ddata.IMultimap interface.
// It encapsulates a Dragonboat NodeHost which is used to communicate with
// the multimap state machine.
type mapImpl struct {
	nh         *dragonboat.NodeHost
	shardID    uint64
	cs         *client.Session
	ownAddress string
	timeout    time.Duration

	mu           sync.Mutex
	listeners    []func(ddata.Snapshot)
	lastRevision uint64

	stopPoll chan struct{}
	closed   atomic.Bool
}

// NewDistributedMultimap creates a multimap handle backed by raft
// consensus. ownAddress is the cluster-unique key this node writes under;
// pollInterval bounds the staleness of change notifications (zero means
// DefaultPollInterval).
func NewDistributedMultimap(nh *dragonboat.NodeHost, shardID uint64, ownAddress string, timeout, pollInterval time.Duration) ddata.IMultimap {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	m := &mapImpl{
		nh:         nh,
		shardID:    shardID,
		cs:         nh.GetNoOPSession(shardID),
		ownAddress: ownAddress,
		timeout:    timeout,
		stopPoll:   make(chan struct{}),
	}

	go m.poll(pollInterval)
	return m
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns a *ddata.Error if an error occurs, or nil on success.
func (m *mapImpl) write(cmd internal.Command) error {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)

		res, err := m.nh.SyncPropose(ctx, m.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(m.timeout / 10)
			continue
		}

		if err != nil {
			return ddata.NewError(ddata.RetCInternalError, err.Error())
		}
		if res.Value != uint64(ddata.RetCSuccess) {
			return ddata.NewError(ddata.RetCode(res.Value), string(res.Data))
		}
		return nil
	}
	return ddata.NewError(ddata.RetCTimeout, "write retries exhausted")
}

// read queries the state machine for the merged snapshot plus revision.
// Retries up to 5 times on system busy errors.
func (m *mapImpl) read() (internal.SnapshotResult, error) {
	var zero internal.SnapshotResult
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		res, err := m.nh.SyncRead(ctx, m.shardID, internal.Query{Type: internal.QueryTSnapshot})
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(m.timeout / 10)
			continue
		}

		if err != nil {
			return zero, ddata.NewError(ddata.RetCInternalError, err.Error())
		}

		casted, ok := res.(internal.SnapshotResult)
		if !ok {
			return zero, ddata.NewError(ddata.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, ddata.NewError(ddata.RetCTimeout, "read retries exhausted")
}

// poll watches the state machine revision and fans new snapshots out to
// subscribers. Listener callbacks run on the poll goroutine.
func (m *mapImpl) poll(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopPoll:
			return
		case <-ticker.C:
		}

		res, err := m.read()
		if err != nil {
			log.Warningf("polling multimap revision failed: %v", err)
			continue
		}

		m.mu.Lock()
		if res.Revision == m.lastRevision {
			m.mu.Unlock()
			continue
		}
		m.lastRevision = res.Revision
		listeners := make([]func(ddata.Snapshot), len(m.listeners))
		copy(listeners, m.listeners)
		m.mu.Unlock()

		for _, listener := range listeners {
			listener(res.Snapshot)
		}
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ddata.IMultimap)
// --------------------------------------------------------------------------

func (m *mapImpl) OwnAddress() string {
	return m.ownAddress
}

// Note: raft writes are always majority-replicated, the consistency hint
// only distinguishes acknowledgement levels in the loopback implementation.
func (m *mapImpl) Write(update ddata.Update, _ ddata.Consistency) error {
	if m.closed.Load() {
		return ddata.NewError(ddata.RetCClosed, "multimap handle is closed")
	}
	if update.IsEmpty() {
		return nil
	}
	return m.write(internal.Command{
		Type:    internal.CommandTMerge,
		Address: m.ownAddress,
		Inserts: update.Inserts,
		Deletes: update.Deletes,
	})
}

func (m *mapImpl) Delete(address string) error {
	if m.closed.Load() {
		return ddata.NewError(ddata.RetCClosed, "multimap handle is closed")
	}
	return m.write(internal.Command{
		Type:    internal.CommandTPrune,
		Address: address,
	})
}

func (m *mapImpl) Subscribe(listener func(ddata.Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *mapImpl) Snapshot() ddata.Snapshot {
	res, err := m.read()
	if err != nil {
		log.Warningf("reading multimap snapshot failed: %v", err)
		return ddata.Snapshot{}
	}
	return res.Snapshot
}

func (m *mapImpl) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		close(m.stopPoll)
	}
	return nil
}

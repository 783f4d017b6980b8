package coordinator

import (
	"sort"
	"time"

	"github.com/ValentinKolb/dACK/lib/cluster"
	"github.com/ValentinKolb/dACK/lib/ddata"
	"github.com/ValentinKolb/dACK/lib/mailbox"
	"github.com/ValentinKolb/dACK/lib/relation"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("coordinator")

// --------------------------------------------------------------------------
// Mailbox Messages
// --------------------------------------------------------------------------

type msgKind uint8

const (
	msgDeclare msgKind = iota
	msgRelease
	msgTerminated
	msgSnapshot
	msgMemberRemoved
	msgAddLocalListener
	msgAddRemoteListener
	msgLocalFeedLost
	msgRemoteFeedLost
	msgClaims
	msgWriteFailed
	msgClose
)

// message is the single variant type flowing through the coordinator
// mailbox. Only the fields of the respective kind are set.
type message struct {
	kind msgKind

	sub    Subscriber
	group  string
	labels []string

	snapshot ddata.Snapshot
	address  string
	baseline []string

	localL  LocalListener
	remoteL RemoteListener

	errReply    chan error
	claimsReply chan []relation.Claim
	done        chan struct{}
}

// --------------------------------------------------------------------------
// Implementation
// --------------------------------------------------------------------------

type coordinatorImpl struct {
	ownAddress string
	store      ddata.IMultimap
	membership cluster.IMembership
	inbox      *mailbox.Mailbox[message]
	stop       chan struct{}

	// State below is owned exclusively by the run goroutine.
	local           *relation.Relation[Subscriber]
	remote          remoteState // folded over all peers
	dominant        remoteState // folded over smaller-address peers only
	lastSnapshot    ddata.Snapshot
	previous        []string // encoded literal baseline of the last flush
	monitors        map[Subscriber]chan struct{}
	localListeners  []LocalListener
	remoteListeners []RemoteListener
}

// New creates and starts a coordinator for the node identified by the
// store's own address. The membership registry decides which snapshot keys
// participate in conflict resolution.
func New(store ddata.IMultimap, membership cluster.IMembership, opts Options) ICoordinator {
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}

	c := &coordinatorImpl{
		ownAddress: store.OwnAddress(),
		store:      store,
		membership: membership,
		inbox:      mailbox.New[message](),
		stop:       make(chan struct{}),
		local:      relation.New[Subscriber](),
		remote:     newRemoteState(),
		dominant:   newRemoteState(),
		monitors:   make(map[Subscriber]chan struct{}),
	}

	store.Subscribe(func(snapshot ddata.Snapshot) {
		c.inbox.Push(&message{kind: msgSnapshot, snapshot: snapshot})
	})
	membership.SubscribeRemoved(func(address string) {
		c.inbox.Push(&message{kind: msgMemberRemoved, address: address})
	})

	// Seed with the current merged state so claims made before this node
	// joined are visible immediately, not only on the next change.
	c.inbox.Push(&message{kind: msgSnapshot, snapshot: store.Snapshot()})

	go c.run(tick)
	return c
}

// --------------------------------------------------------------------------
// Interface Methods (docu see ICoordinator)
// --------------------------------------------------------------------------

func (c *coordinatorImpl) Declare(sub Subscriber, group string, labels []string) error {
	msg := &message{
		kind:     msgDeclare,
		sub:      sub,
		group:    group,
		labels:   labels,
		errReply: make(chan error, 1),
	}
	if !c.inbox.Push(msg) {
		return NewError(RetCClosed, "coordinator is closed")
	}
	return <-msg.errReply
}

func (c *coordinatorImpl) Release(sub Subscriber) {
	msg := &message{kind: msgRelease, sub: sub, done: make(chan struct{})}
	if !c.inbox.Push(msg) {
		return
	}
	<-msg.done
}

func (c *coordinatorImpl) Claims() ([]relation.Claim, error) {
	msg := &message{kind: msgClaims, claimsReply: make(chan []relation.Claim, 1)}
	if !c.inbox.Push(msg) {
		return nil, NewError(RetCClosed, "coordinator is closed")
	}
	return <-msg.claimsReply, nil
}

func (c *coordinatorImpl) RegisterLocalListener(listener LocalListener) {
	c.inbox.Push(&message{kind: msgAddLocalListener, localL: listener})
}

func (c *coordinatorImpl) RegisterRemoteListener(listener RemoteListener) {
	c.inbox.Push(&message{kind: msgAddRemoteListener, remoteL: listener})
}

func (c *coordinatorImpl) Close() error {
	msg := &message{kind: msgClose, done: make(chan struct{})}
	if !c.inbox.Push(msg) {
		return nil
	}
	<-msg.done
	return nil
}

// --------------------------------------------------------------------------
// Run Loop
// --------------------------------------------------------------------------

// run owns all coordinator state. Every mutation happens here.
func (c *coordinatorImpl) run(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.inbox.Recv():
			if !ok {
				return
			}
			if msg.kind == msgClose {
				c.shutdown(msg)
				return
			}
			c.handle(msg)
		case <-ticker.C:
			c.handleTick()
		}
	}
}

func (c *coordinatorImpl) handle(msg *message) {
	switch msg.kind {
	case msgDeclare:
		msg.errReply <- c.handleDeclare(msg.sub, msg.group, msg.labels)
	case msgRelease:
		c.local.Remove(msg.sub)
		c.unmonitor(msg.sub)
		close(msg.done)
	case msgTerminated:
		log.Debugf("subscriber %s terminated, releasing claims", msg.sub.ID())
		c.local.Remove(msg.sub)
		c.unmonitor(msg.sub)
	case msgSnapshot:
		c.handleSnapshot(msg.snapshot)
	case msgMemberRemoved:
		c.handleMemberRemoved(msg.address)
	case msgAddLocalListener:
		c.localListeners = append(c.localListeners, msg.localL)
		c.watchLocalFeed(msg.localL)
	case msgAddRemoteListener:
		c.remoteListeners = append(c.remoteListeners, msg.remoteL)
		c.watchRemoteFeed(msg.remoteL)
	case msgLocalFeedLost:
		c.handleLocalFeedLost(msg.localL)
	case msgRemoteFeedLost:
		c.handleRemoteFeedLost(msg.remoteL)
	case msgClaims:
		msg.claimsReply <- c.local.ExportByGroup()
	case msgWriteFailed:
		// The failed delta never reached the store, diff against the
		// pre-flush baseline again next tick. Updates are idempotent set
		// operations, so restoring an older baseline at worst causes a
		// redundant superset diff.
		c.previous = msg.baseline
	}
}

// --------------------------------------------------------------------------
// Declaration
// --------------------------------------------------------------------------

func (c *coordinatorImpl) handleDeclare(sub Subscriber, group string, labels []string) error {
	if len(labels) == 0 {
		return NewError(RetCEmptyLabels, "declaration without labels")
	}

	// Local group binding: joining an existing group requires the identical
	// label set. The group's sole member may rebind it freely.
	if group != "" {
		if bound, ok := c.local.GroupLabels(group); ok && !equalLabelSets(bound, labels) {
			if !c.local.SoleMember(group, sub) {
				return NewError(RetCLocalConflict,
					"group '"+group+"' is locally bound to a different label set")
			}
		}
	}

	// Local label exclusivity
	for _, label := range labels {
		if c.local.OwnedOutsideGroup(label, group, sub) {
			return NewError(RetCLocalConflict,
				"label '"+label+"' is already owned locally")
		}
	}

	// Remote admissibility against the last merged observation. This is
	// optimistic: a peer we have not observed yet may still win later.
	if c.remote.conflictsWith(group, labels) {
		return NewError(RetCRemoteConflict,
			"claim collides with a remote node's last observed claims")
	}

	c.local.Put(sub, group, labels)
	c.monitor(sub)
	return nil
}

// --------------------------------------------------------------------------
// Flush Tick
// --------------------------------------------------------------------------

func (c *coordinatorImpl) handleTick() {
	claims := c.local.ExportByGroup()

	curr := make([]string, 0, len(claims))
	for _, claim := range claims {
		curr = append(curr, ddata.Literal{Group: claim.Group, Labels: claim.Labels}.Encode())
	}
	sort.Strings(curr)

	update := ddata.Diff(c.previous, curr)
	if !update.IsEmpty() {
		baseline := c.previous
		c.previous = curr
		// Fire and forget: a slow or failing store write must not stall the
		// coordinator. On failure the baseline is restored via the mailbox.
		go func() {
			if err := c.store.Write(update, ddata.ConsistencyLocal); err != nil {
				log.Errorf("flushing ack claims failed: %v", err)
				c.inbox.Push(&message{kind: msgWriteFailed, baseline: baseline})
			}
		}()
	}

	for _, listener := range c.localListeners {
		listener.OnLocalChange(claims)
	}
}

// --------------------------------------------------------------------------
// Remote Observation and Eviction
// --------------------------------------------------------------------------

func (c *coordinatorImpl) handleSnapshot(snapshot ddata.Snapshot) {
	c.lastSnapshot = snapshot
	c.recompute()

	for _, listener := range c.remoteListeners {
		listener.OnRemoteChange(snapshot)
	}
}

func (c *coordinatorImpl) handleMemberRemoved(address string) {
	log.Infof("cluster member %s removed, pruning its claims", address)

	// Drop the departed node's key from the replicated map; any node may do
	// this, the operation is idempotent.
	go func() {
		if err := c.store.Delete(address); err != nil {
			log.Warningf("pruning contribution of %s failed: %v", address, err)
		}
	}()

	// Re-fold immediately so the departed node's claims stop blocking
	// declarations even before the pruned snapshot propagates back.
	if _, ok := c.lastSnapshot[address]; ok {
		c.recompute()
	}
}

// recompute folds the last snapshot against the current membership view and
// evicts local subscribers that lost against a smaller-address peer.
func (c *coordinatorImpl) recompute() {
	view := c.membership.View()

	peers := make([]string, 0, len(c.lastSnapshot))
	for address := range c.lastSnapshot {
		if address == c.ownAddress || !view.Contains(address) {
			continue
		}
		peers = append(peers, address)
	}
	sort.Strings(peers)

	c.remote = foldRemote(c.lastSnapshot, peers, func(address, literal string, err error) {
		log.Warningf("skipping undecodable literal %q of %s: %v", literal, address, err)
	})

	dominant := peers[:0:0]
	for _, address := range peers {
		if cluster.Less(address, c.ownAddress) {
			dominant = append(dominant, address)
		}
	}
	c.dominant = foldRemote(c.lastSnapshot, dominant, nil)

	// Only local subscribers dominated by a smaller address are evicted,
	// the winning side is never disturbed.
	for _, entry := range c.local.Entries() {
		if c.dominant.conflictsWith(entry.Group, entry.Labels) {
			log.Warningf("subscriber %s lost labels %v to a smaller-address peer, evicting",
				entry.Subscriber.ID(), entry.Labels)
			c.local.Remove(entry.Subscriber)
			c.unmonitor(entry.Subscriber)
			entry.Subscriber.Evict(ErrLabelNotUnique)
		}
	}
}

// --------------------------------------------------------------------------
// Feed Loss
// --------------------------------------------------------------------------

// handleLocalFeedLost runs the emergency path: without the local change
// feed, downstream routing state can no longer be kept consistent, so every
// local subscriber is evicted and the relation is cleared. The next tick
// flushes the resulting deletions.
func (c *coordinatorImpl) handleLocalFeedLost(lost LocalListener) {
	kept := c.localListeners[:0]
	for _, l := range c.localListeners {
		if l != lost {
			kept = append(kept, l)
		}
	}
	c.localListeners = kept

	if c.local.Len() == 0 {
		return
	}
	log.Warningf("local change feed lost, evicting %d subscribers", c.local.Len())

	for _, entry := range c.local.Entries() {
		c.unmonitor(entry.Subscriber)
		entry.Subscriber.Evict(ErrLabelNotUnique)
	}
	c.local.Clear()
}

func (c *coordinatorImpl) handleRemoteFeedLost(lost RemoteListener) {
	kept := c.remoteListeners[:0]
	for _, l := range c.remoteListeners {
		if l != lost {
			kept = append(kept, l)
		}
	}
	c.remoteListeners = kept
}

func (c *coordinatorImpl) watchLocalFeed(listener LocalListener) {
	go func() {
		select {
		case <-listener.Done():
			c.inbox.Push(&message{kind: msgLocalFeedLost, localL: listener})
		case <-c.stop:
		}
	}()
}

func (c *coordinatorImpl) watchRemoteFeed(listener RemoteListener) {
	go func() {
		select {
		case <-listener.Done():
			c.inbox.Push(&message{kind: msgRemoteFeedLost, remoteL: listener})
		case <-c.stop:
		}
	}()
}

// --------------------------------------------------------------------------
// Subscriber Monitoring
// --------------------------------------------------------------------------

// monitor watches the subscriber's Done channel and releases its claims on
// termination. One watcher per subscriber, re-declarations reuse it.
func (c *coordinatorImpl) monitor(sub Subscriber) {
	if _, ok := c.monitors[sub]; ok {
		return
	}
	cancel := make(chan struct{})
	c.monitors[sub] = cancel

	go func() {
		select {
		case <-sub.Done():
			c.inbox.Push(&message{kind: msgTerminated, sub: sub})
		case <-cancel:
		}
	}()
}

func (c *coordinatorImpl) unmonitor(sub Subscriber) {
	if cancel, ok := c.monitors[sub]; ok {
		close(cancel)
		delete(c.monitors, sub)
	}
}

// --------------------------------------------------------------------------
// Shutdown
// --------------------------------------------------------------------------

func (c *coordinatorImpl) shutdown(msg *message) {
	for sub := range c.monitors {
		c.unmonitor(sub)
	}
	close(c.stop)
	c.inbox.Close()
	close(msg.done)

	// Answer whatever was still queued so no caller blocks forever.
	for pending := range c.inbox.Recv() {
		switch pending.kind {
		case msgDeclare:
			pending.errReply <- NewError(RetCClosed, "coordinator is closed")
		case msgRelease:
			close(pending.done)
		case msgClaims:
			pending.claimsReply <- nil
		case msgClose:
			close(pending.done)
		}
	}
}

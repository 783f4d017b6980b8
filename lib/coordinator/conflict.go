package coordinator

import (
	"sort"

	"github.com/ValentinKolb/dACK/lib/ddata"
)

// --------------------------------------------------------------------------
// Remote Fold
// --------------------------------------------------------------------------

// remoteState is the folded view of peer claims, derived from a merged
// multimap snapshot. It answers the two admissibility questions: which
// label set a group is bound to, and which group keys claim a label.
type remoteState struct {
	// groups maps a group name to the label set of its winning claimant
	// (the smallest-address peer that claims the group). Labels are sorted.
	groups map[string][]string
	// labels maps a label to the set of group keys claiming it, across all
	// folded peers. The empty key stands for an ungrouped claim.
	labels map[string]map[string]struct{}
}

func newRemoteState() remoteState {
	return remoteState{
		groups: make(map[string][]string),
		labels: make(map[string]map[string]struct{}),
	}
}

// foldRemote folds the contributions of the given addresses (which must be
// in ascending order) into a remoteState. For groups the first claimant's
// label set wins; later conflicting claims for the same group are ignored
// since their owners will evict themselves. For labels every claim is
// accumulated regardless of group outcome. Literals that fail to decode
// are skipped; the decode callback reports them.
func foldRemote(snapshot ddata.Snapshot, addresses []string, onBadLiteral func(address, literal string, err error)) remoteState {
	state := newRemoteState()

	for _, address := range addresses {
		literals := append([]string(nil), snapshot[address]...)
		sort.Strings(literals)

		for _, encoded := range literals {
			literal, err := ddata.DecodeLiteral(encoded)
			if err != nil {
				if onBadLiteral != nil {
					onBadLiteral(address, encoded, err)
				}
				continue
			}

			for _, label := range literal.Labels {
				claimants, ok := state.labels[label]
				if !ok {
					claimants = make(map[string]struct{})
					state.labels[label] = claimants
				}
				claimants[literal.Group] = struct{}{}
			}

			if literal.Group != "" {
				if _, taken := state.groups[literal.Group]; !taken {
					labels := append([]string(nil), literal.Labels...)
					sort.Strings(labels)
					state.groups[literal.Group] = labels
				}
			}
		}
	}

	return state
}

// conflictsWith reports whether a claim (group, labels) collides with the
// folded remote state. The same predicate drives both declare-time
// admissibility (folded over all peers) and the eviction scan (folded over
// smaller-address peers only).
func (s remoteState) conflictsWith(group string, labels []string) bool {
	if group != "" {
		// A remote binding of the same group with a different label set is
		// always a conflict, identical label sets cooperate.
		if bound, ok := s.groups[group]; ok && !equalLabelSets(bound, labels) {
			return true
		}
	}

	for _, label := range labels {
		claimants, ok := s.labels[label]
		if !ok {
			continue
		}
		if group == "" {
			// Ungrouped claims tolerate no other owner at all
			return true
		}
		for claimant := range claimants {
			if claimant != group {
				return true
			}
		}
	}

	return false
}

// equalLabelSets compares two label slices as sets.
func equalLabelSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, label := range a {
		set[label] = struct{}{}
	}
	for _, label := range b {
		if _, ok := set[label]; !ok {
			return false
		}
	}
	return true
}

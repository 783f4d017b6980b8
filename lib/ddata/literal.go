package ddata

import (
	"fmt"
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Literal
// --------------------------------------------------------------------------

// Literal is one (group, label-set) claim. An empty Group means the labels
// are claimed ungrouped, i.e. each label is individually exclusive.
type Literal struct {
	Group  string
	Labels []string
}

/*
 Encoded form: "<group>|<label>,<label>,..." with labels in sorted order so
 that equal claims always encode to equal strings (the encoded form is used
 as a set element and compared byte-wise). Group and labels are opaque
 strings, so the separators '|' and ',' plus the escape character '\' are
 backslash-escaped.
*/

// Encode serializes the literal into its canonical string form.
func (l Literal) Encode() string {
	labels := make([]string, len(l.Labels))
	for i, label := range l.Labels {
		labels[i] = escape(label)
	}
	sort.Strings(labels)

	var sb strings.Builder
	sb.WriteString(escape(l.Group))
	sb.WriteByte('|')
	sb.WriteString(strings.Join(labels, ","))
	return sb.String()
}

// DecodeLiteral parses the canonical string form back into a Literal.
func DecodeLiteral(encoded string) (Literal, error) {
	var (
		literal Literal
		current strings.Builder
		escaped bool
		inGroup = true
	)

	flush := func() {
		if inGroup {
			literal.Group = current.String()
			inGroup = false
		} else {
			literal.Labels = append(literal.Labels, current.String())
		}
		current.Reset()
	}

	for i := 0; i < len(encoded); i++ {
		c := encoded[i]

		if escaped {
			current.WriteByte(c)
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '|':
			if !inGroup {
				return Literal{}, NewError(RetCInvalidLiteral, fmt.Sprintf("unexpected '|' at offset %d", i))
			}
			flush()
		case ',':
			if inGroup {
				return Literal{}, NewError(RetCInvalidLiteral, fmt.Sprintf("unexpected ',' at offset %d", i))
			}
			flush()
		default:
			current.WriteByte(c)
		}
	}

	if escaped {
		return Literal{}, NewError(RetCInvalidLiteral, "dangling escape character")
	}
	if inGroup {
		return Literal{}, NewError(RetCInvalidLiteral, "missing '|' separator")
	}

	// Trailing label (also handles the single-label case)
	if current.Len() > 0 {
		flush()
	}

	if len(literal.Labels) == 0 {
		return Literal{}, NewError(RetCInvalidLiteral, "literal without labels")
	}

	return literal, nil
}

// escape backslash-escapes the separator characters
func escape(s string) string {
	if !strings.ContainsAny(s, "\\|,") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\', '|', ',':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Update (literal diff envelope)
// --------------------------------------------------------------------------

// Update holds the insertions and deletions of encoded literals between two
// successive local snapshots. It is recomputed every coordinator tick and
// immediately superseded.
type Update struct {
	Inserts []string
	Deletes []string
}

// IsEmpty reports whether the update carries no changes.
func (u Update) IsEmpty() bool {
	return len(u.Inserts) == 0 && len(u.Deletes) == 0
}

// Diff computes the minimal Update that transforms the literal set prev into
// the literal set curr. Both inputs are treated as sets; the result slices
// are sorted for deterministic output.
func Diff(prev, curr []string) Update {
	prevSet := make(map[string]struct{}, len(prev))
	for _, literal := range prev {
		prevSet[literal] = struct{}{}
	}
	currSet := make(map[string]struct{}, len(curr))
	for _, literal := range curr {
		currSet[literal] = struct{}{}
	}

	var update Update
	for literal := range currSet {
		if _, ok := prevSet[literal]; !ok {
			update.Inserts = append(update.Inserts, literal)
		}
	}
	for literal := range prevSet {
		if _, ok := currSet[literal]; !ok {
			update.Deletes = append(update.Deletes, literal)
		}
	}

	sort.Strings(update.Inserts)
	sort.Strings(update.Deletes)
	return update
}

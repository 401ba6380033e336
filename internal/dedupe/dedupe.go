// Package dedupe flags probable duplicate transactions. Grouping is
// advisory: it never deletes, the caller decides disposition.
package dedupe

import (
	"fmt"
	"strings"

	"github.com/bankfeed-dev/bankfeed/internal/model"
)

// Signature is the content tuple duplicates are grouped by:
// calendar date, exact amount, and a fixed-length description
// prefix. The prefix keeps trailing reference numbers from hiding
// real duplicates while staying stable against minor drift.
type Signature string

// Group is two or more transactions sharing a signature.
type Group struct {
	Signature    Signature
	Transactions []model.Transaction
}

// Detector groups transactions by content signature.
type Detector struct {
	prefixLen int
}

// NewDetector creates a Detector using the given description prefix
// length.
func NewDetector(prefixLen int) *Detector {
	return &Detector{prefixLen: prefixLen}
}

// SignatureFor computes the grouping signature for one transaction.
func (d *Detector) SignatureFor(txn model.Transaction) Signature {
	desc := strings.ToUpper(strings.TrimSpace(txn.Description))
	if len(desc) > d.prefixLen {
		desc = desc[:d.prefixLen]
	}
	return Signature(fmt.Sprintf("%s|%s|%s",
		txn.Date.Format("2006-01-02"), txn.Amount.StringFixed(2), desc))
}

// Groups partitions a batch into duplicate groups. Transactions with
// a unique signature produce no group. Group order follows first
// occurrence in the input.
func (d *Detector) Groups(txns []model.Transaction) []Group {
	bySig := make(map[Signature][]model.Transaction)
	var order []Signature
	for _, txn := range txns {
		sig := d.SignatureFor(txn)
		if _, seen := bySig[sig]; !seen {
			order = append(order, sig)
		}
		bySig[sig] = append(bySig[sig], txn)
	}

	var groups []Group
	for _, sig := range order {
		if members := bySig[sig]; len(members) >= 2 {
			groups = append(groups, Group{Signature: sig, Transactions: members})
		}
	}
	return groups
}

// FlagAgainst groups incoming transactions together with existing
// store content, so an import can be checked against what is already
// persisted. Groups containing only existing transactions are not
// reported.
func (d *Detector) FlagAgainst(existing, incoming []model.Transaction) []Group {
	existingSigs := make(map[Signature][]model.Transaction)
	for _, txn := range existing {
		sig := d.SignatureFor(txn)
		existingSigs[sig] = append(existingSigs[sig], txn)
	}

	bySig := make(map[Signature][]model.Transaction)
	var order []Signature
	for _, txn := range incoming {
		sig := d.SignatureFor(txn)
		if _, seen := bySig[sig]; !seen {
			order = append(order, sig)
			bySig[sig] = append(bySig[sig], existingSigs[sig]...)
		}
		bySig[sig] = append(bySig[sig], txn)
	}

	var groups []Group
	for _, sig := range order {
		if members := bySig[sig]; len(members) >= 2 {
			groups = append(groups, Group{Signature: sig, Transactions: members})
		}
	}
	return groups
}

package badger

import (
	"encoding/binary"

	"github.com/pdplatform/graphload/core"
)

// Key prefixes for different data types
const (
	ledgerRecordPrefix    = "ledrec"
	quarantineEntryPrefix = "quaent"
	quarantineSeq         = "quaentseq"
	reportLastKey         = "report:last"
)

// makeLedgerKey generates a key for a ledger record by identity.
// Identity strings sort lexicographically, so iteration yields records
// ordered by identity.
func makeLedgerKey(identity core.Identity) []byte {
	return []byte(ledgerRecordPrefix + ":" + identity.String())
}

// makeQuarantineKey generates a key for a quarantine entry by sequence number.
// Format: prefix:seq with the sequence in BigEndian order so lexicographic
// iteration preserves append order.
func makeQuarantineKey(seq uint64) []byte {
	prefix := quarantineEntryPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// EpisodeType identifies the kind of knowledge content an episode carries.
// The set is closed: upstream exports only produce these six kinds, and an
// unrecognized type invalidates the whole batch rather than a single episode.
type EpisodeType uint8

const (
	// EpisodeTypeGeneProfile introduces a gene and its base attributes.
	EpisodeTypeGeneProfile EpisodeType = iota + 1
	// EpisodeTypeGWASEvidence carries genome-wide association evidence.
	EpisodeTypeGWASEvidence
	// EpisodeTypeEQTLEvidence carries expression QTL evidence.
	EpisodeTypeEQTLEvidence
	// EpisodeTypeLiteratureEvidence carries literature-mined evidence.
	EpisodeTypeLiteratureEvidence
	// EpisodeTypePathwayEvidence carries pathway membership evidence.
	EpisodeTypePathwayEvidence
	// EpisodeTypeIntegration carries the integrated scoring summary.
	EpisodeTypeIntegration
)

var episodeTypeNames = map[EpisodeType]string{
	EpisodeTypeGeneProfile:        "gene_profile",
	EpisodeTypeGWASEvidence:       "gwas_evidence",
	EpisodeTypeEQTLEvidence:       "eqtl_evidence",
	EpisodeTypeLiteratureEvidence: "literature_evidence",
	EpisodeTypePathwayEvidence:    "pathway_evidence",
	EpisodeTypeIntegration:        "integration",
}

// EpisodeTypes returns all recognized episode types in dependency order.
func EpisodeTypes() []EpisodeType {
	return []EpisodeType{
		EpisodeTypeGeneProfile,
		EpisodeTypeGWASEvidence,
		EpisodeTypeEQTLEvidence,
		EpisodeTypeLiteratureEvidence,
		EpisodeTypePathwayEvidence,
		EpisodeTypeIntegration,
	}
}

// String returns the wire name of the episode type, or "unknown".
func (t EpisodeType) String() string {
	if name, ok := episodeTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseEpisodeType maps a wire name to an EpisodeType.
// Returns ErrUnknownEpisodeType for names outside the closed set.
func ParseEpisodeType(name string) (EpisodeType, error) {
	for t, n := range episodeTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, ErrUnknownEpisodeType
}

// Identity uniquely names an episode within the knowledge graph.
// Re-appearance of an identity with a different content hash is an update,
// not a duplicate.
type Identity struct {
	GroupID string
	Name    string
}

// String returns the identity in "group/name" form, used for keys and logs.
func (id Identity) String() string {
	return id.GroupID + "/" + id.Name
}

// Episode is one immutable unit of ingestible knowledge content.
type Episode struct {
	GroupID           string
	Name              string
	Type              EpisodeType
	SubjectKey        string // e.g. gene symbol
	Body              string
	Source            string
	SourceDescription string
	ContentHash       string
}

// Identity returns the episode's (group, name) identity.
func (e *Episode) Identity() Identity {
	return Identity{GroupID: e.GroupID, Name: e.Name}
}

// ComputeContentHash digests the episode body together with the metadata that
// affects what the backend materializes. Identical content always produces an
// identical hash, which is what makes ledger skips safe across reruns.
func (e *Episode) ComputeContentHash() string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(e.GroupID))
	h.Write([]byte{0})
	h.Write([]byte(e.Name))
	h.Write([]byte{0})
	h.Write([]byte(e.Type.String()))
	h.Write([]byte{0})
	h.Write([]byte(e.SubjectKey))
	h.Write([]byte{0})
	h.Write([]byte(e.Source))
	h.Write([]byte{0})
	h.Write([]byte(e.SourceDescription))
	h.Write([]byte{0})
	h.Write([]byte(e.Body))
	return hex.EncodeToString(h.Sum(nil))
}

// Status is the ledger lifecycle state of an episode identity.
type Status uint8

const (
	// StatusPending means the identity has been sighted but not yet submitted.
	StatusPending Status = iota + 1
	// StatusInProgress means a submission attempt is underway or retrying.
	StatusInProgress
	// StatusSuccess means the backend accepted the episode.
	StatusSuccess
	// StatusFailed means transient retries were exhausted and the episode
	// was routed to quarantine.
	StatusFailed
	// StatusQuarantined means the backend rejected the payload permanently.
	StatusQuarantined
)

var statusNames = map[Status]string{
	StatusPending:     "pending",
	StatusInProgress:  "in_progress",
	StatusSuccess:     "success",
	StatusFailed:      "failed",
	StatusQuarantined: "quarantined",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the status is a terminal decision for a run.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusQuarantined
}

// IngestionRecord is the durable per-identity ledger entry. It is created on
// first sighting of an identity and only ever superseded, never deleted. The
// orchestrator is the sole writer.
type IngestionRecord struct {
	Identity      Identity
	ContentHash   string
	Status        Status
	AttemptCount  int
	LastError     string
	LastUpdatedAt time.Time
}

// QuarantineEntry is one append-only quarantine record. The full episode is
// stored so a quarantined identity can be replayed without the original batch
// directory.
type QuarantineEntry struct {
	Episode       Episode
	LastError     string
	AttemptCount  int
	Permanent     bool
	QuarantinedAt time.Time
}

// LaneOutcome aggregates terminal decisions for one lane of a run.
type LaneOutcome struct {
	Lane        int
	Type        EpisodeType
	Succeeded   int
	Skipped     int
	Quarantined int
}

// QuarantinedIdentity names a quarantined episode in a report together with
// the error that ended it.
type QuarantinedIdentity struct {
	Identity  Identity
	LastError string
	Permanent bool
}

// VerificationDiscrepancy records a post-run backend check that did not match
// expectations. Discrepancies are diagnostic and never fail a run.
type VerificationDiscrepancy struct {
	SubjectKey string
	Detail     string
}

// IngestionReport is the immutable audit trail of one orchestrator run.
type IngestionReport struct {
	RunID          string
	BatchID        string
	StartedAt      time.Time
	FinishedAt     time.Time
	Total          int
	Succeeded      int
	Skipped        int
	Quarantined    int
	Lanes          []LaneOutcome
	QuarantinedIDs []QuarantinedIdentity
	Discrepancies  []VerificationDiscrepancy
}

// Duration returns the wall-clock duration of the run.
func (r *IngestionReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Clean reports whether every episode ended in a terminal non-failed state.
func (r *IngestionReport) Clean() bool {
	return r.Quarantined == 0
}

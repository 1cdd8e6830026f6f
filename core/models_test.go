package core

import (
	"testing"
)

func TestComputeContentHash_Deterministic(t *testing.T) {
	episode := Episode{
		GroupID:    "pd_target_discovery",
		Name:       "SNCA_gene_profile",
		Type:       EpisodeTypeGeneProfile,
		SubjectKey: "SNCA",
		Body:       `{"symbol":"SNCA","chromosome":"4"}`,
		Source:     "dagster_pipeline",
	}

	h1 := episode.ComputeContentHash()
	h2 := episode.ComputeContentHash()

	if h1 != h2 {
		t.Errorf("ComputeContentHash() produced different hashes for same episode: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("ComputeContentHash() length = %d, want 64 hex chars", len(h1))
	}
}

func TestComputeContentHash_BodyChange(t *testing.T) {
	a := Episode{GroupID: "g", Name: "n", Type: EpisodeTypeGeneProfile, SubjectKey: "SNCA", Body: "one"}
	b := a
	b.Body = "two"

	if a.ComputeContentHash() == b.ComputeContentHash() {
		t.Errorf("ComputeContentHash() produced same hash for different bodies")
	}
}

func TestComputeContentHash_FieldBoundaries(t *testing.T) {
	// "ab"+"c" must not collide with "a"+"bc" across adjacent fields.
	a := Episode{GroupID: "ab", Name: "c", Type: EpisodeTypeGeneProfile, SubjectKey: "s", Body: "x"}
	b := Episode{GroupID: "a", Name: "bc", Type: EpisodeTypeGeneProfile, SubjectKey: "s", Body: "x"}

	if a.ComputeContentHash() == b.ComputeContentHash() {
		t.Errorf("ComputeContentHash() collides across field boundaries")
	}
}

func TestParseEpisodeType(t *testing.T) {
	tests := []struct {
		name    string
		want    EpisodeType
		wantErr bool
	}{
		{name: "gene_profile", want: EpisodeTypeGeneProfile},
		{name: "gwas_evidence", want: EpisodeTypeGWASEvidence},
		{name: "eqtl_evidence", want: EpisodeTypeEQTLEvidence},
		{name: "literature_evidence", want: EpisodeTypeLiteratureEvidence},
		{name: "pathway_evidence", want: EpisodeTypePathwayEvidence},
		{name: "integration", want: EpisodeTypeIntegration},
		{name: "proteomics_evidence", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEpisodeType(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseEpisodeType(%q) expected error, got %v", tt.name, got)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseEpisodeType(%q) unexpected error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseEpisodeType(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestEpisodeType_RoundTrip(t *testing.T) {
	for _, et := range EpisodeTypes() {
		parsed, err := ParseEpisodeType(et.String())
		if err != nil {
			t.Errorf("ParseEpisodeType(%q) unexpected error: %v", et.String(), err)
		}
		if parsed != et {
			t.Errorf("round trip of %v produced %v", et, parsed)
		}
	}
}

func TestIdentity_String(t *testing.T) {
	id := Identity{GroupID: "pd_target_discovery", Name: "SNCA_gene_profile"}
	want := "pd_target_discovery/SNCA_gene_profile"
	if id.String() != want {
		t.Errorf("Identity.String() = %q, want %q", id.String(), want)
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminal := []Status{StatusSuccess, StatusFailed, StatusQuarantined}
	nonTerminal := []Status{StatusPending, StatusInProgress}

	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("Status %v should be terminal", s)
		}
	}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("Status %v should not be terminal", s)
		}
	}
}

func TestReport_Clean(t *testing.T) {
	r := IngestionReport{Total: 18, Succeeded: 17, Skipped: 1}
	if !r.Clean() {
		t.Errorf("report with no quarantines should be clean")
	}
	r.Quarantined = 1
	if r.Clean() {
		t.Errorf("report with quarantines should not be clean")
	}
}

package manifest

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/pdplatform/graphload/core"
)

// ManifestFileName is the batch inventory file expected in every export
// directory.
const ManifestFileName = "manifest.json"

// Manifest is the declared inventory of one export batch. The checksum set
// must exactly match the episode files physically present; any mismatch
// invalidates the whole batch before ingestion starts.
type Manifest struct {
	BatchID      string            `json:"batch_id"`
	CreatedAt    time.Time         `json:"created_at"`
	EpisodeCount int               `json:"episode_count"`
	Checksums    map[string]string `json:"checksums"`
}

// Batch is a validated export directory: the parsed manifest plus the typed
// episodes it declared, ready for lane ordering.
type Batch struct {
	Manifest *Manifest
	Episodes []*core.Episode
}

// episodeFile is the on-disk episode document. Exports produce either this
// flat form or the two-section envelope below.
type episodeFile struct {
	GroupID           string `json:"group_id"`
	Name              string `json:"name"`
	Type              string `json:"type"`
	SubjectKey        string `json:"subject_key"`
	Body              string `json:"body"`
	Source            string `json:"source"`
	SourceDescription string `json:"source_description"`

	// Two-section envelope produced by the upstream pipeline export.
	Metadata *episodeMetadata `json:"episode_metadata,omitempty"`
	Graphiti *episodePayload  `json:"graphiti_episode,omitempty"`
}

type episodeMetadata struct {
	GeneSymbol  string `json:"gene_symbol"`
	EpisodeType string `json:"episode_type"`
}

type episodePayload struct {
	Name              string `json:"name"`
	EpisodeBody       string `json:"episode_body"`
	Source            string `json:"source"`
	SourceDescription string `json:"source_description"`
	GroupID           string `json:"group_id"`
}

// decodeEpisode parses an episode document, accepting both file forms.
// The content hash is recomputed here and never trusted from input.
func decodeEpisode(data []byte) (*core.Episode, error) {
	var file episodeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	episode := &core.Episode{
		GroupID:           file.GroupID,
		Name:              file.Name,
		SubjectKey:        file.SubjectKey,
		Body:              file.Body,
		Source:            file.Source,
		SourceDescription: file.SourceDescription,
	}

	typeName := file.Type
	if file.Metadata != nil && file.Graphiti != nil {
		episode.GroupID = file.Graphiti.GroupID
		episode.Name = file.Graphiti.Name
		episode.SubjectKey = file.Metadata.GeneSymbol
		episode.Body = file.Graphiti.EpisodeBody
		episode.Source = file.Graphiti.Source
		episode.SourceDescription = file.Graphiti.SourceDescription
		typeName = file.Metadata.EpisodeType
	}

	episodeType, err := core.ParseEpisodeType(typeName)
	if err != nil {
		return nil, err
	}
	episode.Type = episodeType

	if err := core.ValidateEpisode(episode); err != nil {
		return nil, err
	}

	episode.ContentHash = episode.ComputeContentHash()
	return episode, nil
}

// FileDigest computes the blake2b-256 digest of a file as a hex string.
// This is the checksum algorithm manifests declare per episode file.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, _ := blake2b.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

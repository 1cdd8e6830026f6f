// Copyright 2025 PD Discovery Platform Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/pdplatform/graphload/core"
)

// MUS serializers for the persisted types. Timestamps are stored as Unix
// microseconds.

// IdentityMUS serializes core.Identity.
var IdentityMUS = identityMUS{}

type identityMUS struct{}

func (s identityMUS) Marshal(v core.Identity, bs []byte) (n int) {
	n = ord.String.Marshal(v.GroupID, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	return n
}

func (s identityMUS) Unmarshal(bs []byte) (v core.Identity, n int, err error) {
	v.GroupID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s identityMUS) Size(v core.Identity) (size int) {
	size = ord.String.Size(v.GroupID)
	size += ord.String.Size(v.Name)
	return size
}

// EpisodeMUS serializes core.Episode.
var EpisodeMUS = episodeMUS{}

type episodeMUS struct{}

func (s episodeMUS) Marshal(v core.Episode, bs []byte) (n int) {
	n = ord.String.Marshal(v.GroupID, bs)
	n += ord.String.Marshal(v.Name, bs[n:])
	n += varint.Uint64.Marshal(uint64(v.Type), bs[n:])
	n += ord.String.Marshal(v.SubjectKey, bs[n:])
	n += ord.String.Marshal(v.Body, bs[n:])
	n += ord.String.Marshal(v.Source, bs[n:])
	n += ord.String.Marshal(v.SourceDescription, bs[n:])
	n += ord.String.Marshal(v.ContentHash, bs[n:])
	return n
}

func (s episodeMUS) Unmarshal(bs []byte) (v core.Episode, n int, err error) {
	var n1 int
	v.GroupID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Name, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var typ uint64
	typ, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Type = core.EpisodeType(typ)
	v.SubjectKey, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Body, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Source, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SourceDescription, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.ContentHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s episodeMUS) Size(v core.Episode) (size int) {
	size = ord.String.Size(v.GroupID)
	size += ord.String.Size(v.Name)
	size += varint.Uint64.Size(uint64(v.Type))
	size += ord.String.Size(v.SubjectKey)
	size += ord.String.Size(v.Body)
	size += ord.String.Size(v.Source)
	size += ord.String.Size(v.SourceDescription)
	size += ord.String.Size(v.ContentHash)
	return size
}

// IngestionRecordMUS serializes core.IngestionRecord.
var IngestionRecordMUS = ingestionRecordMUS{}

type ingestionRecordMUS struct{}

func (s ingestionRecordMUS) Marshal(v core.IngestionRecord, bs []byte) (n int) {
	n = IdentityMUS.Marshal(v.Identity, bs)
	n += ord.String.Marshal(v.ContentHash, bs[n:])
	n += varint.Uint64.Marshal(uint64(v.Status), bs[n:])
	n += varint.Int.Marshal(v.AttemptCount, bs[n:])
	n += ord.String.Marshal(v.LastError, bs[n:])
	n += varint.Int64.Marshal(v.LastUpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (s ingestionRecordMUS) Unmarshal(bs []byte) (v core.IngestionRecord, n int, err error) {
	var n1 int
	v.Identity, n, err = IdentityMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.ContentHash, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status uint64
	status, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Status = core.Status(status)
	v.AttemptCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micro int64
	micro, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.LastUpdatedAt = time.UnixMicro(micro).UTC()
	return
}

func (s ingestionRecordMUS) Size(v core.IngestionRecord) (size int) {
	size = IdentityMUS.Size(v.Identity)
	size += ord.String.Size(v.ContentHash)
	size += varint.Uint64.Size(uint64(v.Status))
	size += varint.Int.Size(v.AttemptCount)
	size += ord.String.Size(v.LastError)
	size += varint.Int64.Size(v.LastUpdatedAt.UnixMicro())
	return size
}

// QuarantineEntryMUS serializes core.QuarantineEntry.
var QuarantineEntryMUS = quarantineEntryMUS{}

type quarantineEntryMUS struct{}

func (s quarantineEntryMUS) Marshal(v core.QuarantineEntry, bs []byte) (n int) {
	n = EpisodeMUS.Marshal(v.Episode, bs)
	n += ord.String.Marshal(v.LastError, bs[n:])
	n += varint.Int.Marshal(v.AttemptCount, bs[n:])
	n += ord.Bool.Marshal(v.Permanent, bs[n:])
	n += varint.Int64.Marshal(v.QuarantinedAt.UnixMicro(), bs[n:])
	return n
}

func (s quarantineEntryMUS) Unmarshal(bs []byte) (v core.QuarantineEntry, n int, err error) {
	var n1 int
	v.Episode, n, err = EpisodeMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.AttemptCount, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Permanent, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micro int64
	micro, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.QuarantinedAt = time.UnixMicro(micro).UTC()
	return
}

func (s quarantineEntryMUS) Size(v core.QuarantineEntry) (size int) {
	size = EpisodeMUS.Size(v.Episode)
	size += ord.String.Size(v.LastError)
	size += varint.Int.Size(v.AttemptCount)
	size += ord.Bool.Size(v.Permanent)
	size += varint.Int64.Size(v.QuarantinedAt.UnixMicro())
	return size
}

// laneOutcomeMUS serializes core.LaneOutcome.
var laneOutcomeMUS = laneOutcomeSer{}

type laneOutcomeSer struct{}

func (s laneOutcomeSer) Marshal(v core.LaneOutcome, bs []byte) (n int) {
	n = varint.Int.Marshal(v.Lane, bs)
	n += varint.Uint64.Marshal(uint64(v.Type), bs[n:])
	n += varint.Int.Marshal(v.Succeeded, bs[n:])
	n += varint.Int.Marshal(v.Skipped, bs[n:])
	n += varint.Int.Marshal(v.Quarantined, bs[n:])
	return n
}

func (s laneOutcomeSer) Unmarshal(bs []byte) (v core.LaneOutcome, n int, err error) {
	var n1 int
	v.Lane, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	var typ uint64
	typ, n1, err = varint.Uint64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Type = core.EpisodeType(typ)
	v.Succeeded, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Skipped, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Quarantined, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	return
}

func (s laneOutcomeSer) Size(v core.LaneOutcome) (size int) {
	size = varint.Int.Size(v.Lane)
	size += varint.Uint64.Size(uint64(v.Type))
	size += varint.Int.Size(v.Succeeded)
	size += varint.Int.Size(v.Skipped)
	size += varint.Int.Size(v.Quarantined)
	return size
}

// quarantinedIdentityMUS serializes core.QuarantinedIdentity.
var quarantinedIdentityMUS = quarantinedIdentitySer{}

type quarantinedIdentitySer struct{}

func (s quarantinedIdentitySer) Marshal(v core.QuarantinedIdentity, bs []byte) (n int) {
	n = IdentityMUS.Marshal(v.Identity, bs)
	n += ord.String.Marshal(v.LastError, bs[n:])
	n += ord.Bool.Marshal(v.Permanent, bs[n:])
	return n
}

func (s quarantinedIdentitySer) Unmarshal(bs []byte) (v core.QuarantinedIdentity, n int, err error) {
	var n1 int
	v.Identity, n, err = IdentityMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	v.LastError, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Permanent, n1, err = ord.Bool.Unmarshal(bs[n:])
	n += n1
	return
}

func (s quarantinedIdentitySer) Size(v core.QuarantinedIdentity) (size int) {
	size = IdentityMUS.Size(v.Identity)
	size += ord.String.Size(v.LastError)
	size += ord.Bool.Size(v.Permanent)
	return size
}

// discrepancyMUS serializes core.VerificationDiscrepancy.
var discrepancyMUS = discrepancySer{}

type discrepancySer struct{}

func (s discrepancySer) Marshal(v core.VerificationDiscrepancy, bs []byte) (n int) {
	n = ord.String.Marshal(v.SubjectKey, bs)
	n += ord.String.Marshal(v.Detail, bs[n:])
	return n
}

func (s discrepancySer) Unmarshal(bs []byte) (v core.VerificationDiscrepancy, n int, err error) {
	var n1 int
	v.SubjectKey, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Detail, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (s discrepancySer) Size(v core.VerificationDiscrepancy) (size int) {
	size = ord.String.Size(v.SubjectKey)
	size += ord.String.Size(v.Detail)
	return size
}

// IngestionReportMUS serializes core.IngestionReport.
var IngestionReportMUS = ingestionReportMUS{}

type ingestionReportMUS struct{}

func (s ingestionReportMUS) Marshal(v core.IngestionReport, bs []byte) (n int) {
	n = ord.String.Marshal(v.RunID, bs)
	n += ord.String.Marshal(v.BatchID, bs[n:])
	n += varint.Int64.Marshal(v.StartedAt.UnixMicro(), bs[n:])
	n += varint.Int64.Marshal(v.FinishedAt.UnixMicro(), bs[n:])
	n += varint.Int.Marshal(v.Total, bs[n:])
	n += varint.Int.Marshal(v.Succeeded, bs[n:])
	n += varint.Int.Marshal(v.Skipped, bs[n:])
	n += varint.Int.Marshal(v.Quarantined, bs[n:])
	n += varint.Int.Marshal(len(v.Lanes), bs[n:])
	for i := range v.Lanes {
		n += laneOutcomeMUS.Marshal(v.Lanes[i], bs[n:])
	}
	n += varint.Int.Marshal(len(v.QuarantinedIDs), bs[n:])
	for i := range v.QuarantinedIDs {
		n += quarantinedIdentityMUS.Marshal(v.QuarantinedIDs[i], bs[n:])
	}
	n += varint.Int.Marshal(len(v.Discrepancies), bs[n:])
	for i := range v.Discrepancies {
		n += discrepancyMUS.Marshal(v.Discrepancies[i], bs[n:])
	}
	return n
}

func (s ingestionReportMUS) Unmarshal(bs []byte) (v core.IngestionReport, n int, err error) {
	var n1 int
	v.RunID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.BatchID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var micro int64
	micro, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.StartedAt = time.UnixMicro(micro).UTC()
	micro, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FinishedAt = time.UnixMicro(micro).UTC()
	v.Total, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Succeeded, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Skipped, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Quarantined, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var count int
	count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count > 0 {
		v.Lanes = make([]core.LaneOutcome, count)
		for i := 0; i < count; i++ {
			v.Lanes[i], n1, err = laneOutcomeMUS.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count > 0 {
		v.QuarantinedIDs = make([]core.QuarantinedIdentity, count)
		for i := 0; i < count; i++ {
			v.QuarantinedIDs[i], n1, err = quarantinedIdentityMUS.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	count, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	if count > 0 {
		v.Discrepancies = make([]core.VerificationDiscrepancy, count)
		for i := 0; i < count; i++ {
			v.Discrepancies[i], n1, err = discrepancyMUS.Unmarshal(bs[n:])
			n += n1
			if err != nil {
				return
			}
		}
	}
	return
}

func (s ingestionReportMUS) Size(v core.IngestionReport) (size int) {
	size = ord.String.Size(v.RunID)
	size += ord.String.Size(v.BatchID)
	size += varint.Int64.Size(v.StartedAt.UnixMicro())
	size += varint.Int64.Size(v.FinishedAt.UnixMicro())
	size += varint.Int.Size(v.Total)
	size += varint.Int.Size(v.Succeeded)
	size += varint.Int.Size(v.Skipped)
	size += varint.Int.Size(v.Quarantined)
	size += varint.Int.Size(len(v.Lanes))
	for i := range v.Lanes {
		size += laneOutcomeMUS.Size(v.Lanes[i])
	}
	size += varint.Int.Size(len(v.QuarantinedIDs))
	for i := range v.QuarantinedIDs {
		size += quarantinedIdentityMUS.Size(v.QuarantinedIDs[i])
	}
	size += varint.Int.Size(len(v.Discrepancies))
	for i := range v.Discrepancies {
		size += discrepancyMUS.Size(v.Discrepancies[i])
	}
	return size
}

// MarshalIngestionRecord serializes an IngestionRecord to bytes.
func MarshalIngestionRecord(record *core.IngestionRecord) []byte {
	buf := make([]byte, IngestionRecordMUS.Size(*record))
	IngestionRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalIngestionRecord deserializes an IngestionRecord from bytes.
func UnmarshalIngestionRecord(data []byte) (*core.IngestionRecord, error) {
	record, _, err := IngestionRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarshalQuarantineEntry serializes a QuarantineEntry to bytes.
func MarshalQuarantineEntry(entry *core.QuarantineEntry) []byte {
	buf := make([]byte, QuarantineEntryMUS.Size(*entry))
	QuarantineEntryMUS.Marshal(*entry, buf)
	return buf
}

// UnmarshalQuarantineEntry deserializes a QuarantineEntry from bytes.
func UnmarshalQuarantineEntry(data []byte) (*core.QuarantineEntry, error) {
	entry, _, err := QuarantineEntryMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarshalIngestionReport serializes an IngestionReport to bytes.
func MarshalIngestionReport(report *core.IngestionReport) []byte {
	buf := make([]byte, IngestionReportMUS.Size(*report))
	IngestionReportMUS.Marshal(*report, buf)
	return buf
}

// UnmarshalIngestionReport deserializes an IngestionReport from bytes.
func UnmarshalIngestionReport(data []byte) (*core.IngestionReport, error) {
	report, _, err := IngestionReportMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

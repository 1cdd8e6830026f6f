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


// Package storage defines the persistence interfaces for the ingestion
// ledger, the error quarantine and run reports, together with the binary
// serialization used by backends.
//
// The ledger supports atomic per-identity upsert with compare-and-set
// semantics; the quarantine store is append-only. Implementations live in
// subpackages (storage/badger provides the BadgerDB backend).
package storage

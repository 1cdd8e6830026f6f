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


package badger

import "github.com/pdplatform/graphload/storage"

// NewMemoryRepositories creates in-memory ledger and quarantine repositories
// for testing. Returns ledger, quarantine, backend, and error.
// Caller must close the quarantine repo and backend when done.
func NewMemoryRepositories() (storage.LedgerRepository, storage.QuarantineRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	ledger := NewLedgerRepository(backend)

	quarantine, err := NewQuarantineRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return ledger, quarantine, backend, nil
}

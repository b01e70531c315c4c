// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"encoding/json"

	"github.com/deckagent/deckagent/internal/logging"
)

// PersistAndLogRun saves a run to the store (best-effort) and debug-logs it.
func PersistAndLogRun(store RunStore, run *Run, logger *logging.Logger) {
	if store != nil {
		if err := store.SaveRun(run); err != nil {
			logger.Warnf("Failed to persist run for job %s: %v", run.JobID, err)
		}
	}

	jsonData, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		logger.Warnf("Failed to marshal run for job %s: %v", run.JobID, err)
	} else {
		logger.Debugf("Job %s run: %s", run.JobID, string(jsonData))
	}
}

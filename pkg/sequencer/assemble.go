package sequencer

import (
	"strings"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// Assemble builds the sequencer submission for a reconstructed message. The sequencer expects the
// signer address in lowercase.
func Assemble(address string, sig string, data *types.CanonicalTypedPayload) *types.SubmissionPayload {
	return &types.SubmissionPayload{
		Address: strings.ToLower(address),
		Sig:     sig,
		Data:    data,
	}
}

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/snapshot"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/testutil"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

var safeAddress = common.HexToAddress("0x9D03bb2092270648d7480049d0E58d2FcF0E5123")

const testSig = "0x" + "ab" + "cd" + "ef" + "01"

func buildPayload(t *testing.T, primaryType string, fields map[string]interface{}) *types.SubmissionPayload {
	payload, err := snapshot.Reconstruct(primaryType, fields)
	require.NoError(t, err)
	return &types.SubmissionPayload{
		Address: strings.ToLower(safeAddress.Hex()),
		Sig:     testSig,
		Data:    payload,
	}
}

func newValidator(t *testing.T) *Validator {
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func requireSchemaError(t *testing.T, err error) *Error {
	require.Error(t, err)
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %T: %v", err, err)
	return verr
}

func TestValidate_AcceptsEveryCategory(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		primaryType string
		fields      map[string]interface{}
	}{
		{snapshot.PrimaryTypeProposal, testutil.ProposalFields(safeAddress, 1700000000)},
		{snapshot.PrimaryTypeSpace, testutil.SpaceFields(safeAddress, 1700000000)},
		{snapshot.PrimaryTypeVote, testutil.VoteFields(safeAddress, 1700000000)},
	}
	for _, tt := range tests {
		t.Run(tt.primaryType, func(t *testing.T) {
			assert.NoError(t, v.Validate(tt.primaryType, buildPayload(t, tt.primaryType, tt.fields)))
		})
	}
}

func TestValidate_Envelope(t *testing.T) {
	v := newValidator(t)

	t.Run("checksummed address", func(t *testing.T) {
		payload := buildPayload(t, snapshot.PrimaryTypeSpace, testutil.SpaceFields(safeAddress, 1700000000))
		payload.Address = safeAddress.Hex()

		verr := requireSchemaError(t, v.Validate(snapshot.PrimaryTypeSpace, payload))
		require.Len(t, verr.Errors, 1)
		assert.True(t, strings.HasPrefix(verr.Errors[0], "/address:"), verr.Errors[0])
	})

	t.Run("empty signature", func(t *testing.T) {
		payload := buildPayload(t, snapshot.PrimaryTypeSpace, testutil.SpaceFields(safeAddress, 1700000000))
		payload.Sig = ""

		verr := requireSchemaError(t, v.Validate(snapshot.PrimaryTypeSpace, payload))
		assert.Contains(t, strings.Join(verr.Errors, "\n"), "/sig:")
	})

	t.Run("foreign domain", func(t *testing.T) {
		payload := buildPayload(t, snapshot.PrimaryTypeSpace, testutil.SpaceFields(safeAddress, 1700000000))
		payload.Data.Domain.Version = "0.1.3"

		verr := requireSchemaError(t, v.Validate(snapshot.PrimaryTypeSpace, payload))
		assert.Contains(t, strings.Join(verr.Errors, "\n"), "/data/domain/version:")
	})

	t.Run("types of another category", func(t *testing.T) {
		payload := buildPayload(t, snapshot.PrimaryTypeSpace, testutil.SpaceFields(safeAddress, 1700000000))

		verr := requireSchemaError(t, v.Validate(snapshot.PrimaryTypeVote, payload))
		assert.Contains(t, strings.Join(verr.Errors, "\n"), "missing definition of Vote")
	})

	t.Run("nil payload", func(t *testing.T) {
		requireSchemaError(t, v.Validate(snapshot.PrimaryTypeSpace, nil))
	})
}

func TestValidate_Messages(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name        string
		primaryType string
		fields      func() map[string]interface{}
		mutate      func(map[string]interface{})
		location    string
	}{
		{
			name:        "empty proposal title",
			primaryType: snapshot.PrimaryTypeProposal,
			fields:      func() map[string]interface{} { return testutil.ProposalFields(safeAddress, 1700000000) },
			mutate:      func(m map[string]interface{}) { m["title"] = "" },
			location:    "/data/message/title:",
		},
		{
			name:        "unknown voting type",
			primaryType: snapshot.PrimaryTypeProposal,
			fields:      func() map[string]interface{} { return testutil.ProposalFields(safeAddress, 1700000000) },
			mutate:      func(m map[string]interface{}) { m["type"] = "plurality" },
			location:    "/data/message/type:",
		},
		{
			name:        "no choices",
			primaryType: snapshot.PrimaryTypeProposal,
			fields:      func() map[string]interface{} { return testutil.ProposalFields(safeAddress, 1700000000) },
			mutate:      func(m map[string]interface{}) { m["choices"] = []interface{}{} },
			location:    "/data/message/choices:",
		},
		{
			name:        "vote choice zero",
			primaryType: snapshot.PrimaryTypeVote,
			fields:      func() map[string]interface{} { return testutil.VoteFields(safeAddress, 1700000000) },
			mutate:      func(m map[string]interface{}) { m["choice"] = "0" },
			location:    "/data/message/choice:",
		},
		{
			name:        "vote proposal id not bytes32",
			primaryType: snapshot.PrimaryTypeVote,
			fields:      func() map[string]interface{} { return testutil.VoteFields(safeAddress, 1700000000) },
			mutate:      func(m map[string]interface{}) { m["proposal"] = "0x1234" },
			location:    "/data/message/proposal:",
		},
		{
			name:        "space settings empty",
			primaryType: snapshot.PrimaryTypeSpace,
			fields:      func() map[string]interface{} { return testutil.SpaceFields(safeAddress, 1700000000) },
			mutate:      func(m map[string]interface{}) { m["settings"] = "" },
			location:    "/data/message/settings:",
		},
		{
			name:        "timestamp in milliseconds",
			primaryType: snapshot.PrimaryTypeSpace,
			fields:      func() map[string]interface{} { return testutil.SpaceFields(safeAddress, 1700000000) },
			mutate:      func(m map[string]interface{}) { m["timestamp"] = "1700000000000" },
			location:    "/data/message/timestamp:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := tt.fields()
			tt.mutate(fields)

			verr := requireSchemaError(t, v.Validate(tt.primaryType, buildPayload(t, tt.primaryType, fields)))
			assert.Equal(t, tt.primaryType, verr.Category)
			assert.Contains(t, strings.Join(verr.Errors, "\n"), tt.location)
		})
	}
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	v := newValidator(t)

	fields := testutil.ProposalFields(safeAddress, 1700000000)
	fields["title"] = ""
	fields["app"] = strings.Repeat("x", 25)
	payload := buildPayload(t, snapshot.PrimaryTypeProposal, fields)
	payload.Address = safeAddress.Hex()

	verr := requireSchemaError(t, v.Validate(snapshot.PrimaryTypeProposal, payload))
	assert.GreaterOrEqual(t, len(verr.Errors), 3)
	assert.Contains(t, verr.Error(), "Proposal failed schema validation")
}

func TestValidate_UnknownCategory(t *testing.T) {
	v := newValidator(t)
	payload := buildPayload(t, snapshot.PrimaryTypeSpace, testutil.SpaceFields(safeAddress, 1700000000))

	err := v.Validate("Alias", payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrUnknownCategory))
}

package snapshot

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// Reconstruct rebuilds the canonical typed-data document of a stored message. Only the fields of
// the category struct are kept and numeric fields are converted from their decimal string form.
// The domain is always the fixed Snapshot domain, whatever the stored document declared.
func Reconstruct(primaryType string, fields map[string]interface{}) (*types.CanonicalTypedPayload, error) {
	category, err := LookupCategory(primaryType)
	if err != nil {
		return nil, err
	}

	message, err := category.Reconstruct(fields)
	if err != nil {
		return nil, err
	}

	return &types.CanonicalTypedPayload{
		PrimaryType: category.PrimaryType(),
		Types: types.TypeSchema{
			category.PrimaryType(): category.Fields(),
		},
		Domain:  types.SnapshotDomain(),
		Message: message,
	}, nil
}

// ReconstructDocument is Reconstruct applied to a stored EIP-712 document
func ReconstructDocument(doc *types.StoredTypedDocument) (*types.CanonicalTypedPayload, error) {
	if doc == nil {
		return nil, fmt.Errorf("stored message has no typed document")
	}
	return Reconstruct(doc.PrimaryType, doc.Message)
}

// ToTypedData converts a canonical payload into go-ethereum's EIP-712 representation
func ToTypedData(payload *types.CanonicalTypedPayload) (apitypes.TypedData, error) {
	if payload == nil {
		return apitypes.TypedData{}, fmt.Errorf("payload cannot be nil")
	}
	fields, ok := payload.Types[payload.PrimaryType]
	if !ok {
		return apitypes.TypedData{}, fmt.Errorf("payload types do not define %q", payload.PrimaryType)
	}
	message, err := payload.MessageMap()
	if err != nil {
		return apitypes.TypedData{}, err
	}

	primary := make([]apitypes.Type, 0, len(fields))
	for _, f := range fields {
		primary = append(primary, apitypes.Type{Name: f.Name, Type: f.Type})
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
			},
			payload.PrimaryType: primary,
		},
		PrimaryType: payload.PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:    payload.Domain.Name,
			Version: payload.Domain.Version,
		},
		Message: message,
	}, nil
}

// HashTypedData returns the EIP-712 digest that the Safe owners signed
func HashTypedData(payload *types.CanonicalTypedPayload) (common.Hash, error) {
	typedData, err := ToTypedData(payload)
	if err != nil {
		return common.Hash{}, err
	}
	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return common.BytesToHash(digest), nil
}

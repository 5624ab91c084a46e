package wallet

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"invoice-pay/pkg/types"
)

const domainTypeName = "EIP712Domain"

// domain fields in canonical order with their EIP-712 types
var domainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
	{Name: "salt", Type: "bytes32"},
}

// SignTypedData signs an EIP-712 payload and returns the 65-byte signature as hex
func (w *Wallet) SignTypedData(ctx context.Context, payload *types.TypedDataPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	td, err := buildTypedData(payload)
	if err != nil {
		return "", err
	}

	if err := w.ask(fmt.Sprintf("Sign %s message for %s?", td.PrimaryType, td.Domain.Name)); err != nil {
		return "", err
	}

	hash, err := typedDataHash(td)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[64] += 27

	w.logger.Debug("typed data signed", map[string]any{"primary_type": td.PrimaryType})
	return hexutil.Encode(sig), nil
}

func typedDataHash(td apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := td.HashStruct(domainTypeName, td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	raw := append([]byte{0x19, 0x01}, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw), nil
}

func buildTypedData(p *types.TypedDataPayload) (apitypes.TypedData, error) {
	if p == nil {
		return apitypes.TypedData{}, fmt.Errorf("typed data payload is missing")
	}

	tdTypes := apitypes.Types{}
	for name, fields := range p.Types {
		converted := make([]apitypes.Type, len(fields))
		for i, f := range fields {
			converted[i] = apitypes.Type{Name: f.Name, Type: f.Type}
		}
		tdTypes[name] = converted
	}

	domain, err := buildDomain(p.Domain)
	if err != nil {
		return apitypes.TypedData{}, err
	}
	if _, ok := tdTypes[domainTypeName]; !ok {
		tdTypes[domainTypeName] = domainType(p.Domain)
	}

	primary, err := primaryType(p.Types)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	return apitypes.TypedData{
		Types:       tdTypes,
		PrimaryType: primary,
		Domain:      domain,
		Message:     apitypes.TypedDataMessage(p.Values),
	}, nil
}

// domainType lists the domain fields present, in canonical order
func domainType(domain map[string]any) []apitypes.Type {
	out := make([]apitypes.Type, 0, len(domainFields))
	for _, f := range domainFields {
		if _, ok := domain[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out
}

func buildDomain(m map[string]any) (apitypes.TypedDataDomain, error) {
	d := apitypes.TypedDataDomain{
		Name:              stringField(m, "name"),
		Version:           stringField(m, "version"),
		VerifyingContract: stringField(m, "verifyingContract"),
		Salt:              stringField(m, "salt"),
	}

	if raw, ok := m["chainId"]; ok && raw != nil {
		id, ok := math.ParseBig256(fmt.Sprint(raw))
		if !ok {
			return d, fmt.Errorf("invalid domain chainId: %v", raw)
		}
		d.ChainId = (*math.HexOrDecimal256)(id)
	}

	return d, nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// primaryType is the one struct type no other type refers to
func primaryType(all map[string][]types.TypedDataField) (string, error) {
	referenced := make(map[string]bool)
	for name, fields := range all {
		for _, f := range fields {
			base := baseType(f.Type)
			if base != name {
				referenced[base] = true
			}
		}
	}

	var candidates []string
	for name := range all {
		if name == domainTypeName || referenced[name] {
			continue
		}
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	if len(candidates) != 1 {
		return "", fmt.Errorf("cannot infer primary type, candidates: %v", candidates)
	}
	return candidates[0], nil
}

// baseType strips array suffixes: "Item[]" and "Item[2]" become "Item"
func baseType(t string) string {
	for i := 0; i < len(t); i++ {
		if t[i] == '[' {
			return t[:i]
		}
	}
	return t
}

// RecoverTypedDataSigner returns the address that produced a typed-data signature
func RecoverTypedDataSigner(payload *types.TypedDataPayload, signature string) (string, error) {
	td, err := buildTypedData(payload)
	if err != nil {
		return "", err
	}
	hash, err := typedDataHash(td)
	if err != nil {
		return "", err
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

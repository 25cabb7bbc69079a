package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainDescriptor = "setuper/descriptor/v1"
	DomainExecution  = "setuper/execution/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DescriptorID computes the content-addressed identity of a registered
// descriptor. Two entries that resolve to the same arguments share an ID.
func DescriptorID(d ActionDescriptor) (string, error) {
	canonical, err := MarshalCanonical(d.Args)
	if err != nil {
		return "", fmt.Errorf("DescriptorID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDescriptor, canonical), nil
}

// ExecutionID computes the identity of one handler invocation within a run.
func ExecutionID(runID, descriptorID string, args IRObject, seq int64) (string, error) {
	obj := IRObject{
		"run_id":        IRString(runID),
		"descriptor_id": IRString(descriptorID),
		"args":          args,
		"seq":           IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ExecutionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainExecution, canonical), nil
}

// MustDescriptorID is like DescriptorID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDescriptorID(d ActionDescriptor) string {
	id, err := DescriptorID(d)
	if err != nil {
		panic(err)
	}
	return id
}

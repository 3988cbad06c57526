package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainModel  = "neuraldsl/model/v1"
	DomainReport = "neuraldsl/report/v1"
	DomainLayer  = "neuraldsl/layer/v1"
	DomainSource = "neuraldsl/source/v1"
	DomainCode   = "neuraldsl/code/v1"
	DomainConfig = "neuraldsl/config/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModelHash computes the content-addressed identity of a model.
// Two models hash equally iff their canonical JSON is byte-identical,
// so parameter order written in source does not matter.
func ModelHash(m *Model) (string, error) {
	canonical, err := MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("ModelHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, canonical), nil
}

// ReportHash computes the content-addressed identity of a research report.
func ReportHash(r *ResearchReport) (string, error) {
	canonical, err := MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("ReportHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainReport, canonical), nil
}

// LayerHash computes the content-addressed identity of a single layer.
func LayerHash(l LayerSpec) (string, error) {
	canonical, err := MarshalCanonical(l)
	if err != nil {
		return "", fmt.Errorf("LayerHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLayer, canonical), nil
}

// SourceHash identifies one compile input: the start symbol and the raw
// source text. The IR version is mixed in so a schema bump invalidates
// cached compilations.
func SourceHash(start, src string) string {
	obj := MapOf(
		P("ir_version", Str(IRVersion)),
		P("start", Str(start)),
		P("source", Str(src)),
	)
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		// Only strings are involved; canonical encoding cannot fail.
		panic(err)
	}
	return hashWithDomain(DomainSource, canonical)
}

// CodeHash identifies generated source text for one backend.
func CodeHash(backend, code string) string {
	return hashWithDomain(DomainCode, []byte(backend+"\x00"+code))
}

// ConfigHash identifies a configuration record, such as the plugin section
// a registry was built from.
func ConfigHash(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ConfigHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConfig, canonical), nil
}

// MustModelHash is like ModelHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustModelHash(m *Model) string {
	h, err := ModelHash(m)
	if err != nil {
		panic(err)
	}
	return h
}

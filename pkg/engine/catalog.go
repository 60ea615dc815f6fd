package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// RedactedValue replaces secret values in redacted copies.
const RedactedValue = "<redacted>"

// SealedPrefix starts a sealed secret value.
const SealedPrefix = "sha256:"

// Encode returns the canonical JSON encoding of the catalog.
// Directives keep emission order, so equal catalogs encode to equal bytes.
func (c *Catalog) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog: %w", err)
	}
	return data, nil
}

// Digest returns the hex SHA-256 of the canonical encoding.
func (c *Catalog) Digest() (string, error) {
	data, err := c.Encode()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// DecodeCatalog parses a catalog from its JSON encoding.
func DecodeCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, NewPermanentError("failed to decode catalog", err).
			WithCode(ErrCodeInvalidInput)
	}
	return &c, nil
}

// Redacted returns a deep copy with secret config values replaced.
func (c *Catalog) Redacted() *Catalog {
	out := &Catalog{
		Class:      c.Class,
		Facts:      c.Facts,
		Directives: make([]Directive, len(c.Directives)),
	}
	for i, d := range c.Directives {
		out.Directives[i] = d.clone()
		if cfg := out.Directives[i].Config; cfg != nil && cfg.Secret && cfg.Ensure == EnsurePresent {
			cfg.Value = RedactedValue
		}
	}
	return out
}

// Sealed returns a deep copy with secret config values replaced by a
// fingerprint of the value. Sealed catalogs can be archived and still show
// that a secret changed, without keeping the secret.
func (c *Catalog) Sealed() *Catalog {
	out := c.Redacted()
	for i := range out.Directives {
		cfg := out.Directives[i].Config
		if cfg == nil || !cfg.Secret || cfg.Ensure != EnsurePresent {
			continue
		}
		cfg.Value = sealValue(c.Directives[i].Config.Value)
	}
	return out
}

func sealValue(v string) string {
	if strings.HasPrefix(v, SealedPrefix) {
		return v
	}
	sum := sha256.Sum256([]byte(v))
	return SealedPrefix + hex.EncodeToString(sum[:8])
}

// clone copies the directive so the copy shares no pointers with d.
func (d Directive) clone() Directive {
	out := d
	if d.Config != nil {
		cfg := *d.Config
		out.Config = &cfg
	}
	if d.Package != nil {
		pkg := *d.Package
		out.Package = &pkg
	}
	if d.Service != nil {
		svc := *d.Service
		if d.Service.Ensure != nil {
			ensure := *d.Service.Ensure
			svc.Ensure = &ensure
		}
		out.Service = &svc
	}
	if d.Exec != nil {
		exec := *d.Exec
		out.Exec = &exec
	}
	out.Relations = Relations{
		Before:    append([]Ref(nil), d.Relations.Before...),
		Require:   append([]Ref(nil), d.Relations.Require...),
		Subscribe: append([]Ref(nil), d.Relations.Subscribe...),
		Notify:    append([]Ref(nil), d.Relations.Notify...),
	}
	return out
}

// DisplayValue is the value to show for a config directive: the value,
// the redaction marker for secrets, or "absent" for tombstones.
func (d *Directive) DisplayValue() string {
	if d.Config == nil {
		return ""
	}
	if d.Config.Ensure == EnsureAbsent {
		return string(EnsureAbsent)
	}
	if d.Config.Secret {
		return RedactedValue
	}
	return d.Config.Value
}

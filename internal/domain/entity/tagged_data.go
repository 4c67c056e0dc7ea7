package entity

import (
	"time"

	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
)

// TaggedData is the atomic unit of the provenance graph. It is immutable once
// its scan results are populated at creation time.
type TaggedData struct {
	id             string
	content        string
	trustLevel     valueobject.TrustLevel
	source         valueobject.DataSource
	originatedFrom string
	timestamp      time.Time
	scanResults    map[string]valueobject.ScanResult
	derivedFrom    []string
}

// NewTaggedData constructs a TaggedData, computing the effective trust level
// from requestedTrust and the trust levels of parents. If any parent is
// Untrusted, the result is Untrusted regardless of requestedTrust — this is
// the trust inheritance invariant and cannot be bypassed by any caller.
func NewTaggedData(
	id string,
	content string,
	requestedTrust valueobject.TrustLevel,
	source valueobject.DataSource,
	originatedFrom string,
	parents []*TaggedData,
) (*TaggedData, error) {
	if id == "" {
		return nil, ErrInvalidDataID
	}
	if !requestedTrust.Valid() {
		return nil, ErrInvalidTrustLevel
	}

	effective := requestedTrust
	parentIDs := make([]string, 0, len(parents))
	for _, p := range parents {
		if p == nil {
			return nil, ErrMissingParent
		}
		parentIDs = append(parentIDs, p.id)
		if p.trustLevel == valueobject.Untrusted {
			effective = valueobject.Untrusted
		}
	}

	return &TaggedData{
		id:             id,
		content:        content,
		trustLevel:     effective,
		source:         source,
		originatedFrom: originatedFrom,
		timestamp:      time.Now().UTC(),
		scanResults:    make(map[string]valueobject.ScanResult),
		derivedFrom:    parentIDs,
	}, nil
}

// ReconstructTaggedData rehydrates a TaggedData from persisted storage,
// bypassing trust-inheritance recomputation (the stored trust level was
// already computed correctly at creation time).
func ReconstructTaggedData(
	id, content string,
	trustLevel valueobject.TrustLevel,
	source valueobject.DataSource,
	originatedFrom string,
	timestamp time.Time,
	scanResults map[string]valueobject.ScanResult,
	derivedFrom []string,
) *TaggedData {
	if scanResults == nil {
		scanResults = make(map[string]valueobject.ScanResult)
	}
	return &TaggedData{
		id:             id,
		content:        content,
		trustLevel:     trustLevel,
		source:         source,
		originatedFrom: originatedFrom,
		timestamp:      timestamp,
		scanResults:    scanResults,
		derivedFrom:    derivedFrom,
	}
}

func (d *TaggedData) ID() string                       { return d.id }
func (d *TaggedData) Content() string                   { return d.content }
func (d *TaggedData) TrustLevel() valueobject.TrustLevel { return d.trustLevel }
func (d *TaggedData) Source() valueobject.DataSource    { return d.source }
func (d *TaggedData) OriginatedFrom() string            { return d.originatedFrom }
func (d *TaggedData) Timestamp() time.Time              { return d.timestamp }
func (d *TaggedData) DerivedFrom() []string {
	out := make([]string, len(d.derivedFrom))
	copy(out, d.derivedFrom)
	return out
}

func (d *TaggedData) IsTrusted() bool {
	return d.trustLevel == valueobject.Trusted
}

// SetScanResult attaches a scanner's result. Called exactly once per scanner
// during creation, before the value is considered fully formed.
func (d *TaggedData) SetScanResult(scannerName string, result valueobject.ScanResult) {
	d.scanResults[scannerName] = result
}

func (d *TaggedData) ScanResults() map[string]valueobject.ScanResult {
	out := make(map[string]valueobject.ScanResult, len(d.scanResults))
	for k, v := range d.scanResults {
		out[k] = v
	}
	return out
}

// AnyScanDirty reports whether any attached scan result found a match.
func (d *TaggedData) AnyScanDirty() bool {
	for _, r := range d.scanResults {
		if r.Found {
			return true
		}
	}
	return false
}

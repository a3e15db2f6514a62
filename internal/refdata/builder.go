// Code-map builders.
//
// This file holds the pure functions that turn snapshots of reference
// records into the two derived lookup maps served by the caches:
//
//   - BuildDeviceCodeMap: (model, testPerformedLoincCode) -> DeviceType
//   - BuildSpecimenCodeMap: lowercase specimen name -> SNOMED code,
//     merged with the compiled-in synonym table (database wins)
//
// Both builders are deterministic given a deterministic input order.
// When the record source yields duplicate composite keys, the last
// record seen wins; this is only deterministic if the store provides a
// stable order, which is acceptable here because colliding records are
// expected to describe the same device.
package refdata

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-lab-backend/internal/domain"
)

// DeviceKey derives the composite device-map key from a model string
// and a test-performed LOINC code. Both parts are lowercased, so keys
// built from ("ABC", "94500-6") and ("abc", "94500-6") are identical.
func DeviceKey(model, testPerformedCode string) string {
	return NormalizeName(model) + "|" + NormalizeName(testPerformedCode)
}

// BuildDeviceCodeMap indexes every (device, supported assay) pair by
// its composite key. Pairs where the model or the test-performed code
// is blank are skipped: they cannot be addressed by an upload row and
// would only pollute the key space.
func BuildDeviceCodeMap(records []domain.DeviceType) map[string]domain.DeviceType {
	out := make(map[string]domain.DeviceType)
	for _, device := range records {
		if strings.TrimSpace(device.Model) == "" {
			continue
		}
		for _, assay := range device.SupportedDiseaseTestPerformed {
			if strings.TrimSpace(assay.TestPerformedLoincCode) == "" {
				continue
			}
			out[DeviceKey(device.Model, assay.TestPerformedLoincCode)] = device
		}
	}
	return out
}

// BuildSpecimenCodeMap merges the database specimen snapshot with the
// static synonym table into one lowercase name -> SNOMED code map. On a
// key collision the database value wins; the static table only fills
// gaps.
func BuildSpecimenCodeMap(records []domain.SpecimenType, static map[string]string) map[string]string {
	out := make(map[string]string, len(records)+len(static))
	for name, code := range static {
		out[NormalizeName(name)] = code
	}
	for _, s := range records {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		out[NormalizeName(s.Name)] = s.TypeCode
	}
	return out
}

// NormalizeName trims and lowercases a key part for case-insensitive
// matching. Names are human-entered, so Unicode-correct casing matters
// more than speed here.
func NormalizeName(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

package vocab

import (
	"sort"
	"strconv"
	"strings"
)

// LatestVersion is the version token that selects the highest versionNumber.
const LatestVersion = "latest"

// SortVersionsDesc orders versions by versionNumber, highest first. The sort is
// stable so equal version numbers keep their remote order.
func SortVersionsDesc(versions []ValueSetVersion) {
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].VersionNumber > versions[j].VersionNumber
	})
}

// LatestOnly returns the highest-numbered version, or nothing for an empty list.
func LatestOnly(versions []ValueSetVersion) []ValueSetVersion {
	if len(versions) == 0 {
		return nil
	}
	sorted := append([]ValueSetVersion(nil), versions...)
	SortVersionsDesc(sorted)
	return sorted[:1]
}

// SelectVersions applies the version token of a targeted value-set operation:
//   - ""       every version, highest first
//   - "latest" the highest version only
//   - "N"      the version whose versionNumber is exactly N, if any
//
// A token that matches nothing (including a non-numeric one) selects nothing.
func SelectVersions(versions []ValueSetVersion, token string) []ValueSetVersion {
	token = strings.TrimSpace(token)
	switch token {
	case "":
		sorted := append([]ValueSetVersion(nil), versions...)
		SortVersionsDesc(sorted)
		return sorted
	case LatestVersion:
		return LatestOnly(versions)
	}

	n, err := strconv.Atoi(token)
	if err != nil {
		return nil
	}
	for _, v := range versions {
		if v.VersionNumber == n {
			return []ValueSetVersion{v}
		}
	}
	return nil
}

// GroupVersions attaches each version to the value set it references, keeping
// the value sets in their listed order. Versions pointing at an unknown value
// set are returned separately.
func GroupVersions(valueSets []ValueSet, versions []ValueSetVersion) ([]ValueSetWithVersions, []ValueSetVersion) {
	grouped := make([]ValueSetWithVersions, len(valueSets))
	byOID := make(map[string]int, len(valueSets))
	for i, vs := range valueSets {
		grouped[i] = ValueSetWithVersions{ValueSet: vs}
		byOID[vs.OID] = i
	}

	var orphans []ValueSetVersion
	for _, ver := range versions {
		i, ok := byOID[ver.ValueSetOID]
		if !ok {
			orphans = append(orphans, ver)
			continue
		}
		grouped[i].Versions = append(grouped[i].Versions, ver)
	}
	return grouped, orphans
}

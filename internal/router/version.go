package router

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// asSemver treats an MCP protocolVersion string ("YYYY-MM-DD") as a
// calendar-version and reshapes it into dotted semver form ("YYYY.MM.DD")
// so it can be compared with github.com/Masterminds/semver/v3, the same
// library this codebase uses for version comparisons elsewhere. Returns
// nil if protocolVersion isn't calver-shaped.
func asSemver(protocolVersion string) *semver.Version {
	dotted := strings.ReplaceAll(protocolVersion, "-", ".")
	v, err := semver.NewVersion(dotted)
	if err != nil {
		return nil
	}
	return v
}

// compareProtocolVersions reports a human-readable warning (empty if none
// is warranted) comparing the agent's reported protocolVersion against
// ours. A mismatched year (semver major, under the YYYY.MM.DD mapping)
// is worth flagging to the operator; a mismatched month/day is not, and
// an unparsable version is logged as unparsable rather than assumed
// incompatible. This never fails the handshake: the spec does not make
// protocol-version mismatch fatal.
func compareProtocolVersions(ours, theirs string) string {
	if ours == theirs {
		return ""
	}

	oursV := asSemver(ours)
	theirsV := asSemver(theirs)
	if oursV == nil || theirsV == nil {
		return "agent reported a non-calver protocolVersion " + theirs + " (expected " + ours + ")"
	}

	if oursV.Major() != theirsV.Major() {
		return "agent protocolVersion " + theirs + " is from a different year than orchestrator's " + ours
	}
	return ""
}

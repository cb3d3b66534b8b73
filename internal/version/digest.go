package version

// DigestOverride implements the orchestrator-level correction described in
// §4.1: when Compare reports digest or unknown, the caller must decide
// whether the remote content actually differs from anything already known
// locally. If it does not, there is no update at all; if it does, the
// category is forced to digest.
//
// known is the set of digests already associated with the running image
// (it may have more than one, e.g. multi-arch manifests observed over
// time). remote is the digest just fetched for the candidate tag.
func DigestOverride(category Category, remote string, known []string) (Category, bool) {
	if category != CategoryDigest && category != CategoryUnknown {
		return category, true
	}
	for _, k := range known {
		if k == remote {
			return category, false
		}
	}
	return CategoryDigest, true
}

package registry

import "net/http"

// manifestAcceptHeader requests both multi-arch manifest lists and plain
// v2 manifests so a HEAD request works against either shape.
const manifestAcceptHeader = "application/vnd.docker.distribution.manifest.list.v2+json, " +
	"application/vnd.docker.distribution.manifest.v2+json, " +
	"application/vnd.oci.image.index.v1+json, " +
	"application/vnd.oci.image.manifest.v1+json"

func applyCredentials(req *http.Request, creds *Credentials) {
	if creds == nil {
		return
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
		return
	}
	if creds.Username != "" {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
}

// parseBearerChallenge extracts realm/service/scope from a
// WWW-Authenticate: Bearer header, per RFC 6750 / the OCI distribution
// spec. Grounded on Dirdmaster-isengard's registry.go challenge parser.
func parseBearerChallenge(header string) map[string]string {
	out := map[string]string{}
	if len(header) < 7 || header[:6] != "Bearer" {
		return out
	}
	rest := header[7:]
	var key, val string
	inQuotes := false
	field := 0 // 0 = key, 1 = value
	for i := 0; i <= len(rest); i++ {
		var c byte
		end := i == len(rest)
		if !end {
			c = rest[i]
		}
		switch {
		case !end && c == '"':
			inQuotes = !inQuotes
		case !end && c == '=' && field == 0 && !inQuotes:
			field = 1
		case !end && c == ',' && !inQuotes:
			out[trimQuotes(key)] = trimQuotes(val)
			key, val = "", ""
			field = 0
		case end:
			if key != "" {
				out[trimQuotes(key)] = trimQuotes(val)
			}
		default:
			if field == 0 {
				key += string(c)
			} else {
				val += string(c)
			}
		}
	}
	return out
}

func trimQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for _, c := range []byte(s) {
		if c == '"' || c == ' ' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

package classify

import "regexp"

// Secret pattern family names, reported in Result.Families.
const (
	FamilyAPIKey     = "api-key"
	FamilyPassword   = "password"
	FamilyBearer     = "bearer-token"
	FamilyPrivateKey = "private-key"
	FamilyAWS        = "aws-credential"
	FamilyGeneric    = "generic-secret"
)

type secretFamily struct {
	name string
	re   *regexp.Regexp
}

// Ordered so the most specific shapes report first; all matching families
// are recorded, not just the first.
var secretFamilies = []secretFamily{
	{FamilyPrivateKey, regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`)},
	{FamilyAWS, regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b|aws_secret_access_key\s*[:=]`)},
	{FamilyBearer, regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]{20,}=*`)},
	{FamilyAPIKey, regexp.MustCompile(`(?i)\b(?:api[_-]?key|apikey|access[_-]?token|client[_-]?secret)\b\s*[:=]\s*['"]?[A-Za-z0-9\-._]{16,}`)},
	{FamilyPassword, regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\b\s*[:=]\s*\S{6,}`)},
	{FamilyGeneric, regexp.MustCompile(`(?i)\bsecret\b\s*[:=]\s*['"]?[A-Za-z0-9\-._]{12,}`)},
}

// matchFamilies returns the names of every secret family matching content,
// in family order. Empty slice means not sensitive.
func matchFamilies(content string) []string {
	var matched []string
	for _, f := range secretFamilies {
		if f.re.MatchString(content) {
			matched = append(matched, f.name)
		}
	}
	return matched
}

package account

import (
	"net/url"
	"strings"
)

const (
	uriScheme = "otpauth"
	uriHost   = "totp"
)

// URI renders the entry as otpauth://totp/<label>?issuer=<issuer>&secret=<secret>.
// Label and issuer are percent-encoded; the secret is written verbatim.
func (e Entry) URI() string {
	var b strings.Builder
	b.WriteString(uriScheme + "://" + uriHost + "/")
	b.WriteString(url.PathEscape(e.Label))
	sep := "?"
	if e.Issuer != "" {
		b.WriteString("?issuer=" + escapeQuery(e.Issuer))
		sep = "&"
	}
	b.WriteString(sep + "secret=" + e.Secret)
	return b.String()
}

// escapeQuery is url.QueryEscape with spaces as %20 rather than '+'.
func escapeQuery(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ParseURI validates an otpauth URI and builds an entry from it. The secret
// keeps its original case.
func ParseURI(raw string) (Entry, error) {
	u, err := parseOTPAuth(raw)
	if err != nil {
		return Entry{}, err
	}
	q := u.Query()
	return Entry{
		Label:  strings.TrimPrefix(u.Path, "/"),
		Issuer: q.Get("issuer"),
		Secret: q.Get("secret"),
	}, nil
}

// ValidURI reports whether raw is an otpauth://totp URI carrying a secret.
func ValidURI(raw string) bool {
	_, err := parseOTPAuth(raw)
	return err == nil
}

// MatchesURI reports whether raw points at this entry: scheme, host and path
// compared exactly, secret compared case-insensitively.
func (e Entry) MatchesURI(raw string) bool {
	if !hasScheme(raw) {
		return false
	}
	in, err := url.Parse(raw)
	if err != nil {
		return false
	}
	own, err := url.Parse(e.URI())
	if err != nil {
		return false
	}
	if own.Scheme != in.Scheme || own.Host != in.Host || own.Path != in.Path {
		return false
	}
	inSecret := in.Query().Get("secret")
	if inSecret == "" {
		return false
	}
	return strings.ToUpper(own.Query().Get("secret")) == strings.ToUpper(inSecret)
}

// hasScheme checks the scheme byte for byte; url.Parse lower-cases it.
func hasScheme(raw string) bool {
	return strings.HasPrefix(raw, uriScheme+"://")
}

func parseOTPAuth(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !hasScheme(raw) {
		return nil, ErrInvalidURI
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidURI
	}
	if u.Scheme != uriScheme || u.Host != uriHost {
		return nil, ErrInvalidURI
	}
	if u.Query().Get("secret") == "" {
		return nil, ErrInvalidURI
	}
	return u, nil
}

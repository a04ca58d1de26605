package auth

import "strings"

// Challenge is one parsed WWW-Authenticate challenge.
type Challenge struct {
	// Scheme is the auth scheme token as sent by the server, e.g. "Digest".
	Scheme string
	// Params holds auth-params keyed by lowercase name.
	Params map[string]string
	// Token68 holds the opaque token for schemes such as NTLM or Negotiate.
	Token68 string
	// Raw is the challenge text as it appeared in the header.
	Raw string
}

// Realm returns the realm parameter, if any.
func (c Challenge) Realm() string {
	return c.Params["realm"]
}

// ParseChallenges parses every challenge in the given WWW-Authenticate
// header values. Parsing of a value stops at the first malformed character.
func ParseChallenges(values []string) []Challenge {
	var out []Challenge
	for _, v := range values {
		out = append(out, parseHeader(v)...)
	}
	return out
}

func parseHeader(s string) []Challenge {
	var (
		out        []Challenge
		cur        *Challenge
		start, end int
	)
	flush := func() {
		if cur != nil {
			cur.Raw = strings.TrimSpace(s[start:end])
			out = append(out, *cur)
			cur = nil
		}
	}

	i := 0
	for {
		i = skip(s, i, " \t,")
		if i >= len(s) {
			break
		}
		tokStart := i
		tok, next := readToken(s, i)
		if tok == "" {
			break
		}
		j := skip(s, next, " \t")

		if cur != nil && j < len(s) && s[j] == '=' {
			j = skip(s, j+1, " \t")
			var val string
			if j < len(s) && s[j] == '"' {
				val, j = readQuoted(s, j)
			} else {
				val, j = readToken(s, j)
			}
			cur.Params[strings.ToLower(tok)] = val
			end, i = j, j
			continue
		}

		flush()
		cur = &Challenge{Scheme: tok, Params: map[string]string{}}
		start, end, i = tokStart, next, next

		if t68, after, ok := readToken68(s, next); ok {
			cur.Token68 = t68
			end, i = after, after
		}
	}
	flush()
	return out
}

// readToken68 reads a token68 following a scheme name at i. It only succeeds
// when the token is the entire remainder of the challenge.
func readToken68(s string, i int) (string, int, bool) {
	k := skip(s, i, " \t")
	if k == i || k >= len(s) {
		return "", i, false
	}
	j := k
	for j < len(s) && isToken68Char(s[j]) {
		j++
	}
	for j < len(s) && s[j] == '=' {
		j++
	}
	if j == k {
		return "", i, false
	}
	m := skip(s, j, " \t")
	if m < len(s) && s[m] != ',' {
		return "", i, false
	}
	return s[k:j], j, true
}

func skip(s string, i int, set string) int {
	for i < len(s) && strings.IndexByte(set, s[i]) >= 0 {
		i++
	}
	return i
}

func readToken(s string, i int) (string, int) {
	j := i
	for j < len(s) && isTokenChar(s[j]) {
		j++
	}
	return s[i:j], j
}

func readQuoted(s string, i int) (string, int) {
	var b strings.Builder
	j := i + 1
	for j < len(s) {
		c := s[j]
		switch {
		case c == '\\' && j+1 < len(s):
			b.WriteByte(s[j+1])
			j += 2
		case c == '"':
			return b.String(), j + 1
		default:
			b.WriteByte(c)
			j++
		}
	}
	return b.String(), j
}

func isTokenChar(c byte) bool {
	if isAlnum(c) {
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}

func isToken68Char(c byte) bool {
	if isAlnum(c) {
		return true
	}
	return strings.IndexByte("-._~+/", c) >= 0
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

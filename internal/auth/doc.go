// Package auth answers HTTP authentication challenges.
//
// Schemes are looked up by challenge name in a registry and paired with
// credentials from a CredentialsProvider. The protocol work for each scheme
// is delegated to a dedicated library:
//
//   - Basic: net/http
//   - Digest: github.com/icholy/digest
//   - NTLM: github.com/Azure/go-ntlmssp
//   - Negotiate and Kerberos: github.com/jcmturner/gokrb5/v8
//
// Transport wires these together as an http.RoundTripper that retries a
// request once after a 401 with the best matching scheme.
package auth

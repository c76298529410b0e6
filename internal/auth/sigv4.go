// Package auth implements AWS Signature Version 4 request authentication
// against a fixed region and a process-wide, read-only credential map.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	gwerrors "github.com/replicagate/replicagate/internal/errors"
)

const (
	algorithm       = "AWS4-HMAC-SHA256"
	scopeTerminator = "aws4_request"
	region          = "us-east-1"
	service         = "s3"
	unsignedPayload = "UNSIGNED-PAYLOAD"

	clockSkewTolerance = 15 * time.Minute
	amzDateFormat      = "20060102T150405Z"
)

// Credential is an access_key_id/secret_access_key pair.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
}

// CredentialStore is a process-wide, read-only mapping from access key id to
// credential, built once at startup.
type CredentialStore struct {
	byAccessKeyID map[string]Credential
}

// NewCredentialStore builds a CredentialStore from creds. The map is never
// mutated after construction.
func NewCredentialStore(creds []Credential) *CredentialStore {
	m := make(map[string]Credential, len(creds))
	for _, c := range creds {
		m[c.AccessKeyID] = c
	}
	return &CredentialStore{byAccessKeyID: m}
}

func (s *CredentialStore) lookup(accessKeyID string) (Credential, bool) {
	c, ok := s.byAccessKeyID[accessKeyID]
	return c, ok
}

// Verifier verifies AWS Signature Version 4 signed requests for the s3
// service in region us-east-1. It is a pure function of (request,
// credential store): no caching, no mutable state.
type Verifier struct {
	Credentials *CredentialStore
}

// NewVerifier constructs a Verifier backed by store.
func NewVerifier(store *CredentialStore) *Verifier {
	return &Verifier{Credentials: store}
}

type parsedAuthorization struct {
	accessKeyID   string
	dateStr       string
	region        string
	service       string
	signedHeaders []string
	signature     string
}

// parseAuthorizationHeader parses the Authorization header per the
// AWS4-HMAC-SHA256 scheme. Malformed structure is reported as InvalidRequest.
func parseAuthorizationHeader(header string) (*parsedAuthorization, error) {
	const prefix = algorithm + " "
	if !strings.HasPrefix(header, prefix) {
		return nil, fmt.Errorf("missing %q prefix", prefix)
	}
	rest := header[len(prefix):]

	fields := make(map[string]string)
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		idx := strings.IndexByte(part, '=')
		if idx < 0 {
			continue
		}
		fields[strings.TrimSpace(part[:idx])] = strings.TrimSpace(part[idx+1:])
	}

	credential, ok := fields["Credential"]
	if !ok || credential == "" {
		return nil, fmt.Errorf("missing Credential")
	}
	signedHeadersStr, ok := fields["SignedHeaders"]
	if !ok || signedHeadersStr == "" {
		return nil, fmt.Errorf("missing SignedHeaders")
	}
	signature, ok := fields["Signature"]
	if !ok || signature == "" {
		return nil, fmt.Errorf("missing Signature")
	}

	credParts := strings.Split(credential, "/")
	if len(credParts) != 5 {
		return nil, fmt.Errorf("credential must have 5 slash-separated fields, got %d", len(credParts))
	}
	if credParts[4] != scopeTerminator {
		return nil, fmt.Errorf("invalid credential scope terminator %q", credParts[4])
	}

	return &parsedAuthorization{
		accessKeyID:   credParts[0],
		dateStr:       credParts[1],
		region:        credParts[2],
		service:       credParts[3],
		signedHeaders: strings.Split(signedHeadersStr, ";"),
		signature:     signature,
	}, nil
}

// VerifyRequest validates the SigV4 signature on r's Authorization header
// and returns the matched credential on success.
func (v *Verifier) VerifyRequest(r *http.Request) (Credential, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return Credential{}, gwerrors.ErrInvalidRequest.WithDetail("missing Authorization header")
	}

	parsed, err := parseAuthorizationHeader(authHeader)
	if err != nil {
		return Credential{}, gwerrors.ErrInvalidRequest.WithDetail(fmt.Sprintf("malformed Authorization header: %v", err))
	}

	amzDate := r.Header.Get("X-Amz-Date")
	if amzDate == "" {
		amzDate = r.Header.Get("Date")
	}
	if amzDate == "" {
		return Credential{}, gwerrors.ErrInvalidRequest.WithDetail("missing x-amz-date or date header")
	}

	payloadHash := r.Header.Get("X-Amz-Content-Sha256")
	if payloadHash == "" {
		return Credential{}, gwerrors.ErrInvalidRequest.WithDetail("missing x-amz-content-sha256 header")
	}

	if err := validateTimestamp(amzDate); err != nil {
		return Credential{}, err
	}

	// Unknown access key id is reported before any HMAC work: the set of
	// valid ids is not secret, so there is no timing concern in doing so.
	cred, ok := v.Credentials.lookup(parsed.accessKeyID)
	if !ok {
		return Credential{}, gwerrors.ErrAccessDenied
	}

	canonicalRequest := buildCanonicalRequest(r, parsed.signedHeaders, payloadHash)
	scope := fmt.Sprintf("%s/%s/%s/%s", parsed.dateStr, region, service, scopeTerminator)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)

	signingKey := deriveSigningKey(cred.SecretAccessKey, parsed.dateStr)
	expected := hex.EncodeToString(hmacSHA256(signingKey, stringToSign))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(parsed.signature)) != 1 {
		return Credential{}, gwerrors.ErrSignatureDoesNotMatch
	}

	return cred, nil
}

// validateTimestamp parses amzDate (x-amz-date basic ISO-8601, or an
// RFC 2822 Date header as fallback) and checks it against the ±15-minute
// clock skew tolerance. The skew is compared in whole seconds, the precision
// of the timestamp itself, so a skew of exactly 15 minutes is accepted.
func validateTimestamp(amzDate string) error {
	var (
		requestTime time.Time
		err         error
	)

	if len(amzDate) == 16 && strings.HasSuffix(amzDate, "Z") {
		requestTime, err = time.Parse(amzDateFormat, amzDate)
	} else {
		requestTime, err = time.Parse(time.RFC1123Z, amzDate)
		if err != nil {
			requestTime, err = time.Parse(time.RFC1123, amzDate)
		}
	}
	if err != nil {
		return gwerrors.ErrInvalidRequest.WithDetail(fmt.Sprintf("invalid timestamp %q: %v", amzDate, err))
	}

	diff := time.Since(requestTime)
	if diff < 0 {
		diff = -diff
	}
	diff = diff.Truncate(time.Second)
	if diff > clockSkewTolerance {
		return gwerrors.ErrInvalidRequest.WithDetail("request timestamp too skewed")
	}
	return nil
}

// buildCanonicalRequest assembles the six \n-joined components of the
// canonical request. The URI is used verbatim, with no re-encoding, and a
// signed header absent from the request is silently skipped rather than
// treated as an error.
func buildCanonicalRequest(r *http.Request, signedHeaders []string, payloadHash string) string {
	var sb strings.Builder

	sb.WriteString(r.Method)
	sb.WriteByte('\n')

	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	sb.WriteString(path)
	sb.WriteByte('\n')

	sb.WriteString(canonicalQueryString(r.URL.RawQuery))
	sb.WriteByte('\n')

	sb.WriteString(canonicalHeaders(r, signedHeaders))
	sb.WriteByte('\n')

	sb.WriteString(strings.Join(signedHeaders, ";"))
	sb.WriteByte('\n')

	if payloadHash == "" {
		payloadHash = unsignedPayload
	}
	sb.WriteString(payloadHash)

	return sb.String()
}

// canonicalQueryString parses rawQuery's &-separated k=v pairs, preserving
// any existing percent-encoding, and re-emits them sorted by (key, value).
func canonicalQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	pairs := strings.Split(rawQuery, "&")
	type kv struct{ k, v string }
	parsed := make([]kv, 0, len(pairs))
	for _, p := range pairs {
		if idx := strings.IndexByte(p, '='); idx >= 0 {
			parsed = append(parsed, kv{p[:idx], p[idx+1:]})
		} else {
			parsed = append(parsed, kv{p, ""})
		}
	}

	sort.Slice(parsed, func(i, j int) bool {
		if parsed[i].k != parsed[j].k {
			return parsed[i].k < parsed[j].k
		}
		return parsed[i].v < parsed[j].v
	})

	out := make([]string, len(parsed))
	for i, p := range parsed {
		out[i] = p.k + "=" + p.v
	}
	return strings.Join(out, "&")
}

// canonicalHeaders emits "name:trimmed-value\n" for each name in
// signedHeaders order. A name absent from the request is skipped.
func canonicalHeaders(r *http.Request, signedHeaders []string) string {
	var sb strings.Builder
	for _, name := range signedHeaders {
		lower := strings.ToLower(name)

		var value string
		var present bool
		if lower == "host" {
			value = r.Host
			present = value != ""
		} else {
			if vals := r.Header.Values(http.CanonicalHeaderKey(lower)); len(vals) > 0 {
				value = strings.Join(vals, ",")
				present = true
			}
		}
		if !present {
			continue
		}

		sb.WriteString(lower)
		sb.WriteByte(':')
		sb.WriteString(strings.TrimSpace(value))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// buildStringToSign implements the fixed three-line-plus-hash format.
func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	hash := sha256.Sum256([]byte(canonicalRequest))
	return algorithm + "\n" + amzDate + "\n" + scope + "\n" + hex.EncodeToString(hash[:])
}

// deriveSigningKey runs the four-step HMAC chain, with region and service
// pinned to us-east-1/s3.
func deriveSigningKey(secretAccessKey, dateStr string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretAccessKey), dateStr)
	kRegion := hmacSHA256(kDate, region)
	kService := hmacSHA256(kRegion, service)
	return hmacSHA256(kService, scopeTerminator)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// Package sign implements the Signature Version 2 request authentication
// scheme: deterministic canonicalization of headers and resource paths into a
// signable string, and HMAC-SHA1 signature generation for both Authorization
// headers and pre-signed query strings.
//
// Both client and service compute the canonical string independently; any
// byte-level divergence fails every request, so the functions here are pure
// and produce fully deterministic output.
package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// amzHeaderPrefix marks the service's custom headers, the only ones included
// in the canonical string.
const amzHeaderPrefix = "x-amz-"

// subResources is the fixed whitelist of query-string keys that select an
// alternate operation on a resource and therefore must be covered by the
// signature. All other query parameters are stripped before signing.
// Kept sorted; canonical output order follows it.
var subResources = []string{
	"acl",
	"delete",
	"lifecycle",
	"location",
	"logging",
	"notification",
	"partNumber",
	"policy",
	"requestPayment",
	"torrent",
	"uploadId",
	"uploads",
	"versionId",
	"versioning",
	"versions",
	"website",
}

// CanonicalizeResource reduces a resource path to the form covered by the
// signature: the path itself plus any recognized sub-resource keys, values
// dropped, in whitelist order. Output is identical regardless of sub-resource
// query values.
func CanonicalizeResource(resource string) string {
	path := resource
	query := ""
	if i := strings.Index(resource, "?"); i != -1 {
		path, query = resource[:i], resource[i+1:]
	}
	if query == "" {
		return path
	}

	present := make(map[string]bool)
	for _, pair := range strings.Split(query, "&") {
		key := pair
		if j := strings.Index(pair, "="); j != -1 {
			key = pair[:j]
		}
		present[key] = true
	}

	var keep []string
	for _, key := range subResources {
		if present[key] {
			keep = append(keep, key)
		}
	}
	if len(keep) == 0 {
		return path
	}
	return path + "?" + strings.Join(keep, "&")
}

// CanonicalizeHeaders selects the x-amz-* headers from h and renders them in
// canonical form: names lower-cased, values trimmed, duplicate values joined
// with commas, one "name:value" line per name, sorted by name and joined with
// newlines. The result is independent of input ordering and of how duplicate
// values were split across entries.
func CanonicalizeHeaders(h http.Header) string {
	var names []string
	values := make(map[string]string)
	for name, vv := range h {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, amzHeaderPrefix) {
			continue
		}
		trimmed := make([]string, len(vv))
		for i, v := range vv {
			trimmed[i] = strings.TrimSpace(v)
		}
		joined := strings.Join(trimmed, ",")
		if prev, ok := values[lower]; ok {
			values[lower] = prev + "," + joined
			continue
		}
		names = append(names, lower)
		values[lower] = joined
	}
	sort.Strings(names)

	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = name + ":" + values[name]
	}
	return strings.Join(lines, "\n")
}

// StringToSign assembles the canonical string:
//
//	VERB\nMD5\nContentType\nDate\n[AmzHeaders\n]Resource
//
// The amzHeaders block and its trailing newline are omitted when empty.
func StringToSign(method, contentMD5, contentType, date, amzHeaders, resource string) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte('\n')
	b.WriteString(contentMD5)
	b.WriteByte('\n')
	b.WriteString(contentType)
	b.WriteByte('\n')
	b.WriteString(date)
	b.WriteByte('\n')
	if amzHeaders != "" {
		b.WriteString(amzHeaders)
		b.WriteByte('\n')
	}
	b.WriteString(resource)
	return b.String()
}

// Sign computes the base64-encoded HMAC-SHA1 of stringToSign under secret.
func Sign(secret, stringToSign string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Authorization computes the Authorization header value for a request. The
// headers passed in must be the final transmitted set: canonicalization runs
// over them here, and any header added afterwards invalidates the signature.
func Authorization(key, secret, method, resource string, h http.Header) string {
	sts := StringToSign(
		method,
		h.Get("Content-Md5"),
		h.Get("Content-Type"),
		h.Get("Date"),
		CanonicalizeHeaders(h),
		CanonicalizeResource(resource),
	)
	return "AWS " + key + ":" + Sign(secret, sts)
}

// QuerySignature computes the raw base64 signature embedded in a pre-signed
// URL: the canonical string uses a fixed GET verb, empty MD5 and content
// type, and the expiry epoch in place of the date.
func QuerySignature(secret string, expires int64, resource string) string {
	sts := StringToSign(
		http.MethodGet,
		"",
		"",
		strconv.FormatInt(expires, 10),
		"",
		CanonicalizeResource(resource),
	)
	return Sign(secret, sts)
}

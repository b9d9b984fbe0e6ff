package media

import (
	"net/url"
	"path"
	"strings"
)

const (
	defaultProxyPrefix = "/media"
	externalKeyPrefix  = "external"
)

// URLResolver translates stored object keys and blob URLs into the stable
// proxy form served by the public site. It holds no mutable state.
type URLResolver struct {
	proxyPrefix   string
	publicBaseURL string
}

// NewURLResolver constructs a resolver. An empty proxy prefix defaults to /media.
func NewURLResolver(proxyPrefix, publicBaseURL string) URLResolver {
	prefix := "/" + strings.Trim(strings.TrimSpace(proxyPrefix), "/")
	if prefix == "/" {
		prefix = defaultProxyPrefix
	}
	return URLResolver{
		proxyPrefix:   prefix,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// ProxyPrefix returns the path prefix under which media is served.
func (r URLResolver) ProxyPrefix() string {
	return r.proxyPrefix
}

// Resolve returns the externally servable URL for a stored value.
// Keys owned by this deployment come back as <prefix>/<key>; anything else
// is returned unchanged.
func (r URLResolver) Resolve(rawValue string) string {
	value := strings.TrimSpace(rawValue)
	if value == "" {
		return ""
	}
	key, owned := r.OwnedKey(value)
	if !owned {
		return value
	}
	return r.proxyPrefix + "/" + escapeKey(key)
}

// OwnedKey extracts the object key from a proxy URL, a public blob URL or a
// bare key. The boolean is false for foreign URLs and data URIs.
func (r URLResolver) OwnedKey(rawValue string) (string, bool) {
	value := strings.TrimSpace(rawValue)
	if value == "" {
		return "", false
	}
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "data:") || strings.HasPrefix(value, "//") {
		return "", false
	}
	if strings.HasPrefix(value, r.proxyPrefix+"/") {
		return cleanKey(stripQuery(strings.TrimPrefix(value, r.proxyPrefix+"/")))
	}
	if r.publicBaseURL != "" && strings.HasPrefix(value, r.publicBaseURL+"/") {
		return cleanKey(stripQuery(strings.TrimPrefix(value, r.publicBaseURL+"/")))
	}
	if strings.Contains(value, "://") || strings.HasPrefix(value, "/") {
		return "", false
	}
	return cleanKey(stripQuery(value))
}

// StorageKey derives a storage key for any submitted value. Owned values map
// to their key; foreign URLs map to a key namespaced by host so that two
// hosts serving the same path never collide.
func (r URLResolver) StorageKey(rawValue string) string {
	if key, owned := r.OwnedKey(rawValue); owned {
		return key
	}
	parsed, err := url.Parse(strings.TrimSpace(rawValue))
	if err != nil || parsed.Host == "" {
		return ""
	}
	key, ok := cleanKey(path.Join(externalKeyPrefix, strings.ToLower(parsed.Host), parsed.EscapedPath()))
	if !ok {
		return ""
	}
	return key
}

// FormatFromKey infers the image format from a key or URL extension.
func FormatFromKey(key string) string {
	extension := strings.TrimPrefix(strings.ToLower(path.Ext(stripQuery(key))), ".")
	switch extension {
	case "jpeg":
		return "jpg"
	case "":
		return ""
	default:
		return extension
	}
}

func stripQuery(value string) string {
	if index := strings.IndexAny(value, "?#"); index >= 0 {
		return value[:index]
	}
	return value
}

func cleanKey(value string) (string, bool) {
	unescaped, err := url.PathUnescape(value)
	if err != nil {
		unescaped = value
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+unescaped), "/")
	if cleaned == "" || cleaned == "." {
		return "", false
	}
	return cleaned, true
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for index, segment := range segments {
		segments[index] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

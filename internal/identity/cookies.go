package identity

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// maxChunkSize keeps each cookie under browser limits once the name and
	// attributes are added
	maxChunkSize = 3180
	base64Prefix = "base64-"
	cookieMaxAge = 400 * 24 * time.Hour
)

// cookieCodec stores a Session in one cookie, or in name.0, name.1, ...
// chunks when the encoded value is too large
type cookieCodec struct {
	name   string
	secure bool
}

func (c cookieCodec) read(cookies []*http.Cookie) (*Session, bool) {
	raw := c.rawValue(cookies)
	if raw == "" {
		return nil, false
	}

	var payload []byte
	if strings.HasPrefix(raw, base64Prefix) {
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(raw, base64Prefix))
		if err != nil {
			return nil, false
		}
		payload = decoded
	} else {
		unescaped, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, false
		}
		payload = []byte(unescaped)
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, false
	}
	if session.AccessToken == "" {
		return nil, false
	}
	return &session, true
}

func (c cookieCodec) rawValue(cookies []*http.Cookie) string {
	byName := make(map[string]string, len(cookies))
	for _, ck := range cookies {
		byName[ck.Name] = ck.Value
	}
	if v, ok := byName[c.name]; ok {
		return v
	}

	var b strings.Builder
	for i := 0; ; i++ {
		v, ok := byName[c.chunkName(i)]
		if !ok {
			break
		}
		b.WriteString(v)
	}
	return b.String()
}

// write encodes the session and deletes whatever session cookies the request
// carried that the new layout does not reuse
func (c cookieCodec) write(session *Session, existing []*http.Cookie) (CookieMutations, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}
	value := base64Prefix + base64.RawURLEncoding.EncodeToString(payload)

	var mutations CookieMutations
	keep := map[string]bool{}
	if len(value) <= maxChunkSize {
		mutations = append(mutations, c.cookie(c.name, value))
		keep[c.name] = true
	} else {
		for i := 0; len(value) > 0; i++ {
			n := min(maxChunkSize, len(value))
			name := c.chunkName(i)
			mutations = append(mutations, c.cookie(name, value[:n]))
			keep[name] = true
			value = value[n:]
		}
	}

	for _, name := range c.present(existing) {
		if !keep[name] {
			mutations = append(mutations, c.deletion(name))
		}
	}
	return mutations, nil
}

// clear deletes every session cookie the request carried
func (c cookieCodec) clear(existing []*http.Cookie) CookieMutations {
	var mutations CookieMutations
	for _, name := range c.present(existing) {
		mutations = append(mutations, c.deletion(name))
	}
	return mutations
}

func (c cookieCodec) present(cookies []*http.Cookie) []string {
	var names []string
	for _, ck := range cookies {
		if ck.Name == c.name || c.isChunk(ck.Name) {
			names = append(names, ck.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (c cookieCodec) isChunk(name string) bool {
	suffix, ok := strings.CutPrefix(name, c.name+".")
	if !ok {
		return false
	}
	_, err := strconv.Atoi(suffix)
	return err == nil
}

func (c cookieCodec) chunkName(i int) string {
	return c.name + "." + strconv.Itoa(i)
}

func (c cookieCodec) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c cookieCodec) deletion(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

package quiz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"

	"github.com/ayush/notsodumb/backend/internal/models"
)

// MaxMaterialChars caps the source text sent to the model.
const MaxMaterialChars = 12000

var (
	ErrSourceRequired = errors.New("source is required for this source type")
	ErrInvalidSource  = errors.New("source is not a valid link for this source type")
	ErrNoMaterial     = errors.New("no usable text found in source")
	// ErrBlockedAddress is returned when a page URL resolves to a loopback,
	// private, link-local or otherwise non-public address.
	ErrBlockedAddress = errors.New("address is not publicly routable")
)

// Cache stores fetched material by key. *store.MinioStore satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, text string) error
}

// Sources resolves a quiz config into the text questions are based on.
type Sources struct {
	transcriptURL string
	httpClient    *http.Client
	pageClient    *http.Client
	cache         Cache
	log           logrus.FieldLogger
}

func NewSources(transcriptURL string, cache Cache, log logrus.FieldLogger) *Sources {
	return &Sources{
		transcriptURL: strings.TrimRight(transcriptURL, "/"),
		httpClient:    &http.Client{},
		pageClient:    publicOnlyClient(),
		cache:         cache,
		log:           log,
	}
}

// Material returns the source text for cfg. Topic-only quizzes have none.
func (s *Sources) Material(ctx context.Context, cfg models.QuizConfig) (string, error) {
	source := strings.TrimSpace(cfg.Source)
	switch cfg.SourceType {
	case "", "topic":
		return "", nil
	case "text":
		if source == "" {
			return "", ErrSourceRequired
		}
		return truncateMaterial(source), nil
	case "url":
		if source == "" {
			return "", ErrSourceRequired
		}
		u, err := url.Parse(source)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", ErrInvalidSource
		}
		sum := sha256.Sum256([]byte(u.String()))
		return s.cached(ctx, "pages/"+hex.EncodeToString(sum[:])+".txt", func() (string, error) {
			return s.fetchPage(ctx, u.String())
		})
	case "youtube":
		if source == "" {
			return "", ErrSourceRequired
		}
		id, ok := VideoID(source)
		if !ok {
			return "", ErrInvalidSource
		}
		return s.cached(ctx, "transcripts/"+id+".txt", func() (string, error) {
			return s.fetchTranscript(ctx, id)
		})
	default:
		return "", ErrInvalidSource
	}
}

func (s *Sources) cached(ctx context.Context, key string, fetch func() (string, error)) (string, error) {
	if s.cache != nil {
		text, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.WithError(err).WithField("key", key).Warn("source cache read")
		}
		if ok {
			return text, nil
		}
	}

	text, err := fetch()
	if err != nil {
		return "", err
	}
	text = truncateMaterial(text)
	if text == "" {
		return "", ErrNoMaterial
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, text); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("source cache write")
		}
	}
	return text, nil
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// VideoID extracts the 11-character id from a YouTube link or bare id.
func VideoID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if videoIDPattern.MatchString(s) {
		return s, true
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 && (parts[0] == "shorts" || parts[0] == "embed" || parts[0] == "live") {
			id = parts[1]
		}
	}
	if !videoIDPattern.MatchString(id) {
		return "", false
	}
	return id, true
}

func (s *Sources) fetchTranscript(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.transcriptURL+"/transcript?videoId="+url.QueryEscape(id), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript-service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoMaterial
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcript-service returned %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Segments []struct {
			Text string `json:"text"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("transcript-service: decode: %w", err)
	}
	parts := make([]string, 0, len(result.Segments))
	for _, seg := range result.Segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

func (s *Sources) fetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "notsodumb-quiz/1.0")
	resp, err := s.pageClient.Do(req)
	if errors.Is(err, ErrBlockedAddress) {
		return "", fmt.Errorf("%w: %w", ErrInvalidSource, ErrBlockedAddress)
	}
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch page returned %d", resp.StatusCode)
	}
	return ExtractText(io.LimitReader(resp.Body, 5<<20))
}

// publicOnlyClient fetches user-supplied URLs. Every dial, including those
// made for redirects, is checked against the resolved IP.
func publicOnlyClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return err
			}
			if ip := net.ParseIP(host); ip == nil || !PublicIP(ip) {
				return ErrBlockedAddress
			}
			return nil
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Transport: transport, Timeout: 30 * time.Second}
}

var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// PublicIP reports whether ip is a globally routable unicast address.
func PublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() ||
		sharedAddressSpace.Contains(ip))
}

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "footer": true, "header": true, "svg": true, "iframe": true,
}

// ExtractText returns the visible text of an HTML document with runs of
// whitespace collapsed.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(parts, " "), nil
}

func truncateMaterial(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= MaxMaterialChars {
		return s
	}
	return string(r[:MaxMaterialChars])
}

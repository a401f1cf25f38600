package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrObjectNotFound is returned when the referenced object does not exist.
var ErrObjectNotFound = errors.New("object not found")

/*
Supabase wraps the few Supabase Storage REST calls case documents need.

Notes on authorization:
- A legacy service_role JWT needs both `apikey` and `Authorization: Bearer <token>`.
- A Secret API Key (sb_secret_...) is not a JWT; Supabase accepts the extra
  Authorization header and ignores it.
*/
type Supabase struct {
	baseURL string // e.g. https://<project>.supabase.co
	apiKey  string // service_role JWT or secret API key
	bucket  string
	client  *http.Client
}

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
}

func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" || cfg.Bucket == "" {
		return nil, errors.New("supabase storage needs url, service key and bucket")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Supabase{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.ServiceKey,
		bucket:  cfg.Bucket,
		client:  client,
	}, nil
}

// MakeObjectKey builds a per-case object key: case/<caseID>/<docID>-<filename>.
// The document id keeps keys unique when the same file name is uploaded twice.
func MakeObjectKey(caseID, documentID uuid.UUID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	return path.Join("case", caseID.String(), documentID.String()+"-"+name)
}

// CasePrefix is the key prefix every object of caseID lives under.
func CasePrefix(caseID uuid.UUID) string {
	return "case/" + caseID.String() + "/"
}

// OwnsKey reports whether key is a plain object key under caseID's prefix,
// i.e. one no other case can reference.
func OwnsKey(caseID uuid.UUID, key string) bool {
	rest, ok := strings.CutPrefix(key, CasePrefix(caseID))
	if !ok || rest == "" || strings.Contains(rest, "\\") {
		return false
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func (s *Supabase) objectURL(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, p := range parts {
		for _, seg := range strings.Split(p, "/") {
			escaped = append(escaped, url.PathEscape(seg))
		}
	}
	return s.baseURL + "/storage/v1/object/" + strings.Join(escaped, "/")
}

func (s *Supabase) do(ctx context.Context, method, target string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, "build storage request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "storage %s", method)
	}
	return res, nil
}

func statusError(op string, res *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return errors.Newf("supabase %s error: %s | %s", op, res.Status, string(b))
}

// Upload sends a new object to: POST /storage/v1/object/{bucket}/{objectName}
func (s *Supabase) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	res, err := s.do(ctx, http.MethodPost, s.objectURL(s.bucket, key), r, contentType)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return statusError("upload", res)
	}
	return nil
}

// SignedURL creates a short-lived signed URL:
// POST /storage/v1/object/sign/{bucket}/{objectName}  body: {"expiresIn": <seconds>}
func (s *Supabase) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	body, _ := json.Marshal(map[string]int{"expiresIn": int(ttl.Seconds())})
	res, err := s.do(ctx, http.MethodPost, s.objectURL("sign", s.bucket, key), bytes.NewReader(body), "application/json")
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return "", errors.Wrapf(ErrObjectNotFound, "sign %s", key)
	}
	if res.StatusCode >= 300 {
		return "", statusError("sign", res)
	}

	var out struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode sign response")
	}
	if out.SignedURL == "" {
		return "", errors.New("empty signedURL in response")
	}

	// API returns a relative path; convert to absolute URL.
	return fmt.Sprintf("%s/storage/v1%s", s.baseURL, out.SignedURL), nil
}

// Delete removes an object by key:
// DELETE /storage/v1/object/{bucket}/{objectName}
// 404 is treated as success (already deleted).
func (s *Supabase) Delete(ctx context.Context, key string) error {
	res, err := s.do(ctx, http.MethodDelete, s.objectURL(s.bucket, key), nil, "")
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.StatusCode >= 300 {
		return statusError("delete", res)
	}
	return nil
}

package worklist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"worklist-sentinel/internal/models"
)

// DefaultDocumentAPIBase is the document store used when none is configured.
const DefaultDocumentAPIBase = "https://api.github.com"

// ErrNoDocumentFile is returned when the document has no file to read from.
var ErrNoDocumentFile = errors.New("worklist document has no files")

// DocumentStore keeps the worklist as a named text file inside a remote document
// (a gist-shaped resource: GET/PATCH {base}/gists/{id}).
type DocumentStore struct {
	client     *http.Client
	baseURL    string
	documentID string
	credential string
	fileName   string // optional; first file in the document when empty
}

// NewDocumentStore builds a document-backed store. A nil client gets a 30s timeout client.
func NewDocumentStore(client *http.Client, baseURL, documentID, credential, fileName string) *DocumentStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultDocumentAPIBase
	}
	return &DocumentStore{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		documentID: documentID,
		credential: credential,
		fileName:   fileName,
	}
}

func (s *DocumentStore) documentURL() string {
	return s.baseURL + "/gists/" + url.PathEscape(s.documentID)
}

// Fetch reads the document and returns the tokens of its worklist file.
func (s *DocumentStore) Fetch(ctx context.Context) (models.Worklist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.documentURL(), nil)
	if err != nil {
		return models.Worklist{}, err
	}
	s.authorize(req)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Worklist{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Worklist{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Worklist{}, fmt.Errorf("unexpected status %d fetching worklist: %s", resp.StatusCode, truncate(body, 200))
	}

	name, content, err := parseDocument(body, s.fileName)
	if err != nil {
		return models.Worklist{}, err
	}
	return models.Worklist{ID: name, Tokens: models.ParseTokens(content)}, nil
}

// Persist overwrites the worklist file named by list.ID with the newline-joined tokens.
func (s *DocumentStore) Persist(ctx context.Context, list models.Worklist) error {
	if list.ID == "" {
		return errors.New("worklist has no identifier")
	}
	payload, err := json.Marshal(map[string]any{
		"files": map[string]any{
			list.ID: map[string]string{"content": models.JoinTokens(list.Tokens)},
		},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.documentURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d persisting worklist: %s", resp.StatusCode, truncate(body, 200))
	}
	return nil
}

func (s *DocumentStore) authorize(req *http.Request) {
	req.Header.Set("Authorization", "token "+s.credential)
}

// parseDocument returns the chosen file name and its content. Without a pinned name the
// first file in document order is used.
func parseDocument(body []byte, pinned string) (string, string, error) {
	type file struct {
		Content string `json:"content"`
	}
	var doc struct {
		Files json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", "", err
	}
	if len(doc.Files) == 0 {
		return "", "", ErrNoDocumentFile
	}

	dec := json.NewDecoder(bytes.NewReader(doc.Files))
	tok, err := dec.Token()
	if err != nil {
		return "", "", err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return "", "", ErrNoDocumentFile
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return "", "", err
		}
		name, _ := keyTok.(string)
		var f file
		if err := dec.Decode(&f); err != nil {
			return "", "", err
		}
		if pinned == "" || name == pinned {
			return name, f.Content, nil
		}
	}
	if pinned != "" {
		return "", "", fmt.Errorf("worklist file %q not found in document", pinned)
	}
	return "", "", ErrNoDocumentFile
}

func truncate(body []byte, n int) string {
	s := strings.TrimSpace(string(body))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

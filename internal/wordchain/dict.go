package wordchain

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	corpusSuggestion = "suggestion.txt"
	corpusExtra      = "blue_archive_words.txt"
	rulesFile        = "rules.txt"
	snapshotFile     = "index.msgpack"

	fetchTimeout = 15 * time.Second
)

// Dictionary is the immutable in-memory word index. Words are grouped by
// first syllable and ordered by (-length, lex) so candidate generation can
// walk each bucket front to back.
type Dictionary struct {
	words   map[string]struct{}
	byFirst map[rune][]string
}

// NewDictionary builds an index from a raw word list. Duplicates collapse.
func NewDictionary(words []string) *Dictionary {
	d := &Dictionary{
		words:   make(map[string]struct{}, len(words)),
		byFirst: make(map[rune][]string),
	}
	for _, w := range words {
		if _, dup := d.words[w]; dup {
			continue
		}
		d.words[w] = struct{}{}
		first, _ := utf8.DecodeRuneInString(w)
		d.byFirst[first] = append(d.byFirst[first], w)
	}
	for _, bucket := range d.byFirst {
		sort.Slice(bucket, func(i, j int) bool {
			li, lj := utf8.RuneCountInString(bucket[i]), utf8.RuneCountInString(bucket[j])
			if li != lj {
				return li > lj
			}
			return bucket[i] < bucket[j]
		})
	}
	return d
}

// Contains reports whether w is a dictionary word.
func (d *Dictionary) Contains(w string) bool {
	_, ok := d.words[w]
	return ok
}

// Len returns the word count.
func (d *Dictionary) Len() int { return len(d.words) }

func (d *Dictionary) startingWith(first rune) []string {
	return d.byFirst[first]
}

func firstRune(w string) rune {
	r, _ := utf8.DecodeRuneInString(w)
	return r
}

func lastRune(w string) rune {
	r, _ := utf8.DecodeLastRuneInString(w)
	return r
}

// parseWordList reads a #-commented UTF-8 word list. Single-syllable
// entries are dropped: they are unplayable in the chain.
func parseWordList(r io.Reader) []string {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if utf8.RuneCountInString(line) < 2 {
			continue
		}
		words = append(words, line)
	}
	return words
}

// Loader materializes the dictionary from a local cache directory,
// refreshing the cache from the remote corpus server when its sha256
// differs. Every remote failure is soft: the loader logs and serves
// whatever the cache holds.
type Loader struct {
	baseURL string
	token   string
	dir     string
	client  *http.Client
	log     zerolog.Logger
}

// NewLoader creates a dictionary loader rooted at dir. An empty baseURL
// disables remote refresh entirely.
func NewLoader(baseURL, token, dir string, log zerolog.Logger) *Loader {
	return &Loader{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dir:     dir,
		client:  &http.Client{Timeout: fetchTimeout},
		log:     log.With().Str("component", "dictionary").Logger(),
	}
}

// Load refreshes the cache if possible and returns the dictionary plus the
// phonetic rules. Rules come from rules.txt in the cache dir when present.
func (l *Loader) Load(ctx context.Context) (*Dictionary, *Rules, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create dictionary dir: %w", err)
	}
	if l.baseURL != "" {
		if err := l.refresh(ctx); err != nil {
			l.log.Warn().Err(err).Msg("Dictionary refresh failed, using local cache")
		}
	}

	dict, err := l.loadIndex()
	if err != nil {
		return nil, nil, err
	}

	rules := DefaultRules()
	if data, err := os.ReadFile(filepath.Join(l.dir, rulesFile)); err == nil {
		rules = ParseRules(data)
	}

	l.log.Info().Int("words", dict.Len()).Msg("Dictionary loaded")
	return dict, rules, nil
}

// refresh compares the remote corpus hash against the local one and pulls
// both corpus files when they differ.
func (l *Loader) refresh(ctx context.Context) error {
	remote, err := l.remoteHash(ctx)
	if err != nil {
		return err
	}
	local, err := l.corpusHash()
	if err == nil && local == remote {
		return nil
	}

	for _, name := range []string{corpusSuggestion, corpusExtra} {
		if err := l.download(ctx, name); err != nil {
			return err
		}
	}
	l.log.Info().Str("sha256", remote).Msg("Dictionary cache refreshed")
	return nil
}

func (l *Loader) remoteHash(ctx context.Context) (string, error) {
	body, err := l.get(ctx, "/meta")
	if err != nil {
		return "", err
	}
	var meta struct {
		SHA256 string `json:"sha256"`
	}
	if err := json.Unmarshal(body, &meta); err != nil || meta.SHA256 == "" {
		// Some deployments serve the bare hex digest.
		digest := strings.TrimSpace(string(body))
		if len(digest) != sha256.Size*2 {
			return "", fmt.Errorf("unrecognized corpus meta response")
		}
		return digest, nil
	}
	return meta.SHA256, nil
}

// corpusHash hashes the cached corpus files in their download order.
func (l *Loader) corpusHash() (string, error) {
	h := sha256.New()
	for _, name := range []string{corpusSuggestion, corpusExtra} {
		f, err := os.Open(filepath.Join(l.dir, name))
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (l *Loader) download(ctx context.Context, name string) error {
	body, err := l.get(ctx, "/"+name)
	if err != nil {
		return err
	}
	return atomicWrite(l.dir, name, body)
}

func (l *Loader) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("corpus fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("corpus fetch %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// indexSnapshot is the msgpack sidecar written next to the text cache. It
// is purely an optimization: when its hash no longer matches the corpus it
// is rebuilt from the text files.
type indexSnapshot struct {
	Hash  string   `msgpack:"hash"`
	Words []string `msgpack:"words"`
}

func (l *Loader) loadIndex() (*Dictionary, error) {
	hash, err := l.corpusHash()
	if err != nil {
		return nil, fmt.Errorf("dictionary cache unreadable: %w", err)
	}

	if data, err := os.ReadFile(filepath.Join(l.dir, snapshotFile)); err == nil {
		var snap indexSnapshot
		if err := msgpack.Unmarshal(data, &snap); err == nil && snap.Hash == hash {
			return NewDictionary(snap.Words), nil
		}
	}

	var words []string
	for _, name := range []string{corpusSuggestion, corpusExtra} {
		f, err := os.Open(filepath.Join(l.dir, name))
		if err != nil {
			return nil, err
		}
		words = append(words, parseWordList(f)...)
		f.Close()
	}

	if data, err := msgpack.Marshal(indexSnapshot{Hash: hash, Words: words}); err == nil {
		if err := atomicWrite(l.dir, snapshotFile, data); err != nil {
			l.log.Warn().Err(err).Msg("Failed to write dictionary snapshot")
		}
	}
	return NewDictionary(words), nil
}

// atomicWrite lands content under dir/name via a temp file and rename, so
// a crash mid-write never leaves a truncated cache file.
func atomicWrite(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

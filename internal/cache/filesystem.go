package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File extensions for the three slots of the filesystem cache.
const (
	extHTML   = ".html"
	extData   = ".data.json"
	extBinary = ".data.gob"
)

// FilesystemStats reports on-disk cache counters. I/O faults never fail
// a call; they are treated as misses and counted in Errors.
type FilesystemStats struct {
	Hits   int `json:"hits"`
	Misses int `json:"misses"`
	Writes int `json:"writes"`
	Errors int `json:"errors"`
}

// Filesystem is a TTL-checked on-disk store with two key spaces:
// URL-keyed HTML bodies and identifier-keyed structured data. Structured
// data has a JSON slot and a gob slot for payloads that do not survive a
// JSON round-trip (set-valued maps in the documentation indices).
type Filesystem struct {
	dir   string
	ttl   time.Duration
	clock Clock

	mu    sync.Mutex
	stats FilesystemStats
}

// NewFilesystem creates the cache directory if needed. A nil clock means
// system time.
func NewFilesystem(dir string, ttl time.Duration, clock Clock) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Filesystem{dir: dir, ttl: ttl, clock: clock}, nil
}

// Dir returns the cache directory root.
func (f *Filesystem) Dir() string { return f.dir }

// entryPath derives the on-disk path for a key: MD5 of the key string
// plus the slot extension. Collisions are not a concern at this scale.
func (f *Filesystem) entryPath(key, ext string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+ext)
}

// fresh reports whether path exists and its mtime is within TTL.
// Stale files are removed lazily.
func (f *Filesystem) fresh(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if f.clock.Now().Sub(info.ModTime()) > f.ttl {
		_ = os.Remove(path)
		return false
	}
	return true
}

// writeAtomic writes data via a temp file and rename so concurrent
// readers never observe a torn entry.
func (f *Filesystem) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func (f *Filesystem) countHit()   { f.mu.Lock(); f.stats.Hits++; f.mu.Unlock() }
func (f *Filesystem) countMiss()  { f.mu.Lock(); f.stats.Misses++; f.mu.Unlock() }
func (f *Filesystem) countWrite() { f.mu.Lock(); f.stats.Writes++; f.mu.Unlock() }
func (f *Filesystem) countError() { f.mu.Lock(); f.stats.Errors++; f.mu.Unlock() }

// GetHTML returns a cached HTML body for url, if fresh.
func (f *Filesystem) GetHTML(url string) (string, bool) {
	path := f.entryPath(url, extHTML)
	if !f.fresh(path) {
		f.countMiss()
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		f.countError()
		return "", false
	}
	f.countHit()
	return string(data), true
}

// SetHTML stores an HTML body under url.
func (f *Filesystem) SetHTML(url, body string) error {
	if err := f.writeAtomic(f.entryPath(url, extHTML), []byte(body)); err != nil {
		f.countError()
		return fmt.Errorf("write html cache: %w", err)
	}
	f.countWrite()
	return nil
}

// InvalidateHTML removes the cached body for url.
func (f *Filesystem) InvalidateHTML(url string) {
	_ = os.Remove(f.entryPath(url, extHTML))
}

// GetData decodes the JSON slot for id into out.
func (f *Filesystem) GetData(id string, out any) bool {
	path := f.entryPath(id, extData)
	if !f.fresh(path) {
		f.countMiss()
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		f.countError()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		f.countError()
		return false
	}
	f.countHit()
	return true
}

// SetData stores v in the JSON slot for id.
func (f *Filesystem) SetData(id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		f.countError()
		return fmt.Errorf("marshal data: %w", err)
	}
	if err := f.writeAtomic(f.entryPath(id, extData), data); err != nil {
		f.countError()
		return fmt.Errorf("write data cache: %w", err)
	}
	f.countWrite()
	return nil
}

// GetBinaryData decodes the gob slot for id into out. The gob slot holds
// structures whose set-valued maps would not survive JSON.
func (f *Filesystem) GetBinaryData(id string, out any) bool {
	path := f.entryPath(id, extBinary)
	if !f.fresh(path) {
		f.countMiss()
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		f.countError()
		return false
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		f.countError()
		return false
	}
	f.countHit()
	return true
}

// SetBinaryData stores v in the gob slot for id.
func (f *Filesystem) SetBinaryData(id string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		f.countError()
		return fmt.Errorf("encode binary data: %w", err)
	}
	if err := f.writeAtomic(f.entryPath(id, extBinary), buf.Bytes()); err != nil {
		f.countError()
		return fmt.Errorf("write binary cache: %w", err)
	}
	f.countWrite()
	return nil
}

// InvalidateData removes both the JSON and gob slots for id.
func (f *Filesystem) InvalidateData(id string) {
	_ = os.Remove(f.entryPath(id, extData))
	_ = os.Remove(f.entryPath(id, extBinary))
}

// Clear removes every cache entry under the directory root.
func (f *Filesystem) Clear() error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch filepath.Ext(name) {
		case ".html", ".json", ".gob":
			_ = os.Remove(filepath.Join(f.dir, name))
		}
	}
	return nil
}

// Stats returns the counter snapshot.
func (f *Filesystem) Stats() FilesystemStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Package tailer reads newly appended records from the active session
// transcript. It keeps a byte-offset watermark per file, follows rotation to
// newer files and treats a shrinking file as truncation.
package tailer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entireio/relay/cmd/relay/cli/transcript"
)

// maxRotatedHistory bounds the list of previously watched files.
const maxRotatedHistory = 8

var (
	// ErrNoTranscript means there is no file to read yet.
	ErrNoTranscript = errors.New("no transcript file")
	// ErrVanished means the watched file disappeared; the reference was cleared.
	ErrVanished = errors.New("transcript file vanished")
)

// LogFile is one transcript file and its read watermark.
type LogFile struct {
	Path      string
	CreatedAt time.Time
	Offset    int64
	Active    bool
}

// Batch is the result of one read pass.
type Batch struct {
	transcript.ScanResult

	Path       string
	FromOffset int64
	ToOffset   int64
	Truncated  bool
}

// Reader tails transcripts in one directory. It is not safe for concurrent
// use; the owner serializes calls.
type Reader struct {
	dir          string
	maxLineBytes int
	current      *LogFile
	rotated      []LogFile
}

// New returns a Reader for the *.jsonl files in dir.
func New(dir string, maxLineBytes int) *Reader {
	return &Reader{dir: dir, maxLineBytes: maxLineBytes}
}

// Current returns the watched file, if any.
func (r *Reader) Current() (LogFile, bool) {
	if r.current == nil {
		return LogFile{}, false
	}
	return *r.current, true
}

// Rotated returns previously watched files, oldest first.
func (r *Reader) Rotated() []LogFile {
	out := make([]LogFile, len(r.rotated))
	copy(out, r.rotated)
	return out
}

// Switch makes path the watched file. The watermark starts at the file's
// current size so backlog is never replayed. Switching to the file already
// watched is a no-op.
func (r *Reader) Switch(path string) error {
	if r.current != nil && r.current.Path == path {
		return nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat transcript: %w", err)
	}
	if fi.IsDir() {
		return fmt.Errorf("transcript %s is a directory", path)
	}

	r.retire()
	r.current = &LogFile{
		Path:      path,
		CreatedAt: createdAt(path, fi),
		Offset:    fi.Size(),
		Active:    true,
	}
	return nil
}

// retire moves the current file into the rotated history.
func (r *Reader) retire() {
	if r.current == nil {
		return
	}
	old := *r.current
	old.Active = false
	r.rotated = append(r.rotated, old)
	if len(r.rotated) > maxRotatedHistory {
		r.rotated = r.rotated[len(r.rotated)-maxRotatedHistory:]
	}
	r.current = nil
}

// Candidate is a transcript file found by Newest.
type Candidate struct {
	Path      string
	CreatedAt time.Time
}

// Newest returns the most recently created *.jsonl file in dir.
func Newest(dir string) (Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Candidate{}, ErrNoTranscript
		}
		return Candidate{}, fmt.Errorf("reading transcript directory: %w", err)
	}

	var best Candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		fi, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		created := createdAt(path, fi)
		if best.Path == "" || created.After(best.CreatedAt) {
			best = Candidate{Path: path, CreatedAt: created}
		}
	}
	if best.Path == "" {
		return Candidate{}, ErrNoTranscript
	}
	return best, nil
}

// Rescan switches to a newer transcript if one was created after the
// watched file. It reports whether the watched file changed.
func (r *Reader) Rescan() (bool, error) {
	newest, err := Newest(r.dir)
	if err != nil {
		return false, err
	}
	if r.current != nil {
		if newest.Path == r.current.Path || !newest.CreatedAt.After(r.current.CreatedAt) {
			return false, nil
		}
	}
	if err := r.Switch(newest.Path); err != nil {
		return false, err
	}
	return true, nil
}

// ReadNew reads complete lines appended since the watermark. The watermark
// is advanced before the batch is returned, so a re-entrant call finds
// nothing new. A trailing partial line is left for the next pass.
func (r *Reader) ReadNew() (Batch, error) {
	if r.current == nil {
		return Batch{}, ErrNoTranscript
	}
	cur := r.current

	fi, err := os.Stat(cur.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.retire()
			return Batch{}, ErrVanished
		}
		return Batch{}, fmt.Errorf("stat transcript: %w", err)
	}

	batch := Batch{Path: cur.Path, FromOffset: cur.Offset}
	size := fi.Size()
	if size < cur.Offset {
		cur.Offset = 0
		batch.FromOffset = 0
		batch.Truncated = true
	}
	if size == cur.Offset {
		batch.ToOffset = cur.Offset
		return batch, nil
	}

	buf, err := readRange(cur.Path, cur.Offset, size-cur.Offset)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.retire()
			return Batch{}, ErrVanished
		}
		return Batch{}, err
	}

	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		batch.ToOffset = cur.Offset
		return batch, nil
	}
	complete := buf[:end+1]
	cur.Offset += int64(len(complete))
	batch.ToOffset = cur.Offset

	batch.ScanResult = transcript.Scan(complete, r.maxLineBytes)
	return batch, nil
}

func readRange(path string, offset, n int64) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the transcript directory or a hook payload
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	return buf[:read], nil
}

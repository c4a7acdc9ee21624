package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"compscan-engine/internal/domain"
)

// DirSource scans a drop directory for reply files. Plain .txt files
// hold one reply per non-empty line; .html files are thread exports.
// A consumed file is moved into ProcessedDir by the batch finalizer.
type DirSource struct {
	Dir          string
	ProcessedDir string
	MaxFiles     int
	limiter      *rate.Limiter
}

func NewDirSource(dir, processedDir string, filesPerSecond float64, maxFiles int) *DirSource {
	if filesPerSecond <= 0 {
		filesPerSecond = 4
	}
	if maxFiles <= 0 {
		maxFiles = 50
	}
	return &DirSource{
		Dir:          dir,
		ProcessedDir: processedDir,
		MaxFiles:     maxFiles,
		limiter:      rate.NewLimiter(rate.Limit(filesPerSecond), 1),
	}
}

func (s *DirSource) Name() string { return "dir" }

func (s *DirSource) Fetch(ctx context.Context) ([]Batch, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // nothing dropped yet
		}
		return nil, fmt.Errorf("scan %s: %w", s.Dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".txt" && ext != ".html" && ext != ".htm" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) > s.MaxFiles {
		names = names[:s.MaxFiles]
	}

	var batches []Batch
	for _, name := range names {
		if err := s.limiter.Wait(ctx); err != nil {
			return batches, err
		}

		path := filepath.Join(s.Dir, name)
		replies, err := readReplies(path)
		if err != nil {
			return batches, fmt.Errorf("read %s: %w", path, err)
		}

		src := path
		batches = append(batches, Batch{
			Source:  s.Name(),
			BatchID: uuid.NewString(),
			Origin:  path,
			Replies: replies,
			Finalize: func(ctx context.Context) error {
				return moveFile(src, filepath.Join(s.ProcessedDir, name))
			},
		})
	}

	return batches, nil
}

func readReplies(path string) ([]domain.RawReply, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		texts, err := htmlReplies(strings.NewReader(string(b)))
		if err != nil {
			return nil, err
		}
		return indexReplies(texts), nil
	}

	// one reply per non-empty line
	var texts []string
	for _, line := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		texts = append(texts, strings.TrimRight(line, "\r"))
	}
	return indexReplies(texts), nil
}

func indexReplies(texts []string) []domain.RawReply {
	out := make([]domain.RawReply, 0, len(texts))
	for i, t := range texts {
		out = append(out, domain.RawReply{Index: i, Text: t})
	}
	return out
}

// moveFile renames src into dst's directory, falling back to
// copy+delete when rename crosses filesystems.
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

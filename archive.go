package demmosaic

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const headSniffBytes = 8 << 10

// CollectDocuments gathers DEM documents from a mixture of directories
// and zip archives. Archives are extracted selectively into workDir:
// only members that look like DEM documents and nested zips, the latter
// recursively up to cfg.MaxArchiveDepth deep and cfg.MaxExtractBytes
// total. Unreadable inputs and corrupt archives are skipped with a
// warning; the caller decides whether an empty result is fatal.
//
// Top-level inputs extract in parallel; nesting within one input is
// sequential. The returned order is deterministic: inputs in argument
// order, documents in lexical walk order within each input.
func CollectDocuments(ctx context.Context, inputs []string, workDir string, cfg Config, logger *log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var budget atomic.Int64
	budget.Store(cfg.MaxExtractBytes)

	// Each goroutine owns one slot; no locking needed.
	perInput := make([][]string, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := collectFromInput(input, workDir, cfg, &budget, logger)
			if err != nil {
				logger.Warn("skipping input", "input", input, "err", err)
				return nil
			}
			perInput[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(perInput...), nil
}

func collectFromInput(input, workDir string, cfg Config, budget *atomic.Int64, logger *log.Logger) ([]string, error) {
	info, err := os.Stat(input)
	switch {
	case err != nil:
		return nil, err
	case info.IsDir():
		return collectFromDir(input)
	case strings.EqualFold(filepath.Ext(input), ".zip"):
		dst := filepath.Join(workDir, strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
		if err := extractZip(input, dst, 0, cfg, budget, logger); err != nil {
			return nil, err
		}
		return collectFromDir(dst)
	default:
		return nil, fmt.Errorf("unsupported input: %s", input)
	}
}

// collectFromDir walks dir recursively and returns the paths of files
// that pass both the name heuristic and the head sniff.
func collectFromDir(dir string) ([]string, error) {
	var docs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsDEMDocumentName(d.Name()) {
			return nil
		}
		head, err := readHead(path)
		if err != nil {
			return err
		}
		if LooksLikeDEMDocument(head) {
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// extractZip extracts the DEM documents and nested zips of one archive
// into dst, recursing into nested archives until depth reaches
// cfg.MaxArchiveDepth.
func extractZip(zipPath, dst string, depth int, cfg Config, budget *atomic.Int64, logger *log.Logger) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.Close()
	}()

	var nested []string
	for _, member := range r.File {
		name := member.Name
		isZip := strings.EqualFold(filepath.Ext(name), ".zip")
		if !isZip {
			if !IsDEMDocumentName(name) {
				continue
			}
			head, err := readMemberHead(member)
			if err != nil {
				return err
			}
			if !LooksLikeDEMDocument(head) {
				continue
			}
		}
		if budget.Add(-int64(member.UncompressedSize64)) < 0 {
			return fmt.Errorf("extraction budget exhausted at %s", name)
		}
		target, err := extractMember(member, dst)
		if err != nil {
			return err
		}
		if isZip {
			nested = append(nested, target)
		}
	}

	// Nested archives, one branch at a time.
	slices.Sort(nested)
	for _, nestedZip := range nested {
		if depth+1 >= cfg.MaxArchiveDepth {
			logger.Warn("archive nesting too deep, skipping", "archive", nestedZip, "depth", depth+1)
			continue
		}
		sub := strings.TrimSuffix(nestedZip, filepath.Ext(nestedZip))
		if err := extractZip(nestedZip, sub, depth+1, cfg, budget, logger); err != nil {
			logger.Warn("skipping nested archive", "archive", nestedZip, "err", err)
		}
		_ = os.Remove(nestedZip)
	}
	return nil
}

// extractMember writes one archive member below dst, refusing paths that
// escape it.
func extractMember(member *zip.File, dst string) (string, error) {
	target := filepath.Join(dst, filepath.FromSlash(member.Name))
	if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive member escapes extraction dir: %s", member.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	src, err := member.Open()
	if err != nil {
		return "", err
	}
	defer func() {
		_ = src.Close()
	}()
	out, err := os.Create(target)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, io.LimitReader(src, int64(member.UncompressedSize64))); err != nil {
		_ = out.Close()
		return "", err
	}
	return target, out.Close()
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	head := make([]byte, headSniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return head[:n], nil
}

func readMemberHead(member *zip.File) ([]byte, error) {
	f, err := member.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	head := make([]byte, headSniffBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return head[:n], nil
}

// # internal/engine/patch/patch.go
package patch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"

	cerrors "chisel/internal/core/errors"
)

// Result records one applied replacement. Original holds the pre-patch file
// bytes so the patch can be rolled back after a failed validation.
type Result struct {
	ID         uuid.UUID
	FilePath   string
	BeforeHash string
	AfterHash  string
	Original   []byte
}

// Engine performs atomic byte-span replacements on files. Every write goes
// through a fsynced temp file in the target's directory followed by a rename,
// so a crash at any point leaves either the old or the new content, never a
// torn file.
type Engine struct {
	log *slog.Logger
}

func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}
}

// ApplySpanReplacement replaces file bytes [start, end) with newText. The
// span must lie within the file and both offsets must fall on UTF-8 rune
// boundaries; a bad span fails before any mutation.
func (e *Engine) ApplySpanReplacement(path string, start, end uint, newText string) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "reading patch target"),
			cerrors.CtxPath, path)
	}

	if err := validateSpan(content, start, end); err != nil {
		return nil, cerrors.AddContext(err, cerrors.CtxPath, path)
	}

	patched := make([]byte, 0, uint(len(content))-(end-start)+uint(len(newText)))
	patched = append(patched, content[:start]...)
	patched = append(patched, newText...)
	patched = append(patched, content[end:]...)

	if err := writeAtomic(path, patched, "chisel-tmp"); err != nil {
		return nil, err
	}

	res := &Result{
		ID:         uuid.New(),
		FilePath:   path,
		BeforeHash: contentHash(content),
		AfterHash:  contentHash(patched),
		Original:   content,
	}

	e.log.Debug("span replacement applied",
		"patch_id", res.ID.String(),
		"path", path,
		"span_start", start,
		"span_end", end,
		"before_hash", res.BeforeHash[:12],
		"after_hash", res.AfterHash[:12])

	return res, nil
}

// Rollback restores the pre-patch bytes through the same atomic protocol,
// using a differently named temp file so an undo never races a pending apply.
func (e *Engine) Rollback(res *Result) error {
	if err := writeAtomic(res.FilePath, res.Original, "chisel-undo"); err != nil {
		return err
	}
	e.log.Debug("patch rolled back", "patch_id", res.ID.String(), "path", res.FilePath)
	return nil
}

func validateSpan(content []byte, start, end uint) error {
	length := uint(len(content))
	if start > end || end > length {
		return cerrors.AddContext(cerrors.AddContext(
			cerrors.New(cerrors.CodeInvalidSpan,
				fmt.Sprintf("span [%d, %d) out of bounds for %d bytes", start, end, length)),
			cerrors.CtxSpanStart, start), cerrors.CtxSpanEnd, end)
	}
	if start < length && !utf8.RuneStart(content[start]) {
		return cerrors.AddContext(
			cerrors.New(cerrors.CodeInvalidSpan, "span start splits a UTF-8 sequence"),
			cerrors.CtxSpanStart, start)
	}
	if end < length && !utf8.RuneStart(content[end]) {
		return cerrors.AddContext(
			cerrors.New(cerrors.CodeInvalidSpan, "span end splits a UTF-8 sequence"),
			cerrors.CtxSpanEnd, end)
	}
	return nil
}

// writeAtomic writes content to a hidden temp sibling, fsyncs it, then
// renames it over path. Same-directory placement keeps the rename on one
// filesystem, and the temp file carries the target's mode so the rename
// preserves permission bits on executable sources.
func writeAtomic(path string, content []byte, suffix string) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+suffix)

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "creating temp file"),
			cerrors.CtxPath, path)
	}

	// The create mode above is filtered by the umask; set it again so the
	// target's bits survive verbatim.
	if err := f.Chmod(mode); err != nil {
		f.Close()
		os.Remove(tmp)
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "setting temp file mode"),
			cerrors.CtxPath, path)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "writing temp file"),
			cerrors.CtxPath, path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "syncing temp file"),
			cerrors.CtxPath, path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "closing temp file"),
			cerrors.CtxPath, path)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "renaming temp file over target"),
			cerrors.CtxPath, path)
	}
	return nil
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

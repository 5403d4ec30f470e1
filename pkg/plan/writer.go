package plan

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// ErrNeedsInput is returned when writing a plan that is still waiting on the user
var ErrNeedsInput = errors.New("plan needs input before it can be written")

// ErrNotAPlan is returned when the output path holds a file that is not a
// previously written plan
var ErrNotAPlan = errors.New("refusing to overwrite a file that is not a plan")

const planHeader = "# Plan: "

// Writer persists plan artifacts beneath a base directory
type Writer struct {
	baseDir string
}

// NewWriter creates a writer resolving relative output paths against baseDir
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Path returns where p will be written
func (w *Writer) Path(p *Plan) string {
	if filepath.IsAbs(p.OutputPath) {
		return p.OutputPath
	}
	return filepath.Join(w.baseDir, filepath.FromSlash(p.OutputPath))
}

// Write renders p as Markdown and writes it under a file lock so concurrent
// invocations never interleave. An existing file is only replaced when it is
// itself a plan.
func (w *Writer) Write(ctx context.Context, p *Plan) (string, error) {
	if p.NeedsInput {
		return "", ErrNeedsInput
	}
	if p.OutputPath == "" {
		return "", errors.New("plan has no output path")
	}

	content, err := Markdown(p)
	if err != nil {
		return "", err
	}

	path := w.Path(p)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create plan directory")
	}
	err = lockedfile.Transform(path, func(current []byte) ([]byte, error) {
		if len(bytes.TrimSpace(current)) > 0 && !bytes.HasPrefix(current, []byte(planHeader)) {
			return nil, ErrNotAPlan
		}
		return content, nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to write plan to %s", path)
	}

	logger.G(ctx).WithField("path", path).Info("wrote plan")
	return path, nil
}

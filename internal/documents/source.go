// Package documents reads and stores résumé files on local disk or in an
// S3-compatible bucket.
package documents

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/candidate-profiler/internal/config"
)

// MaxSize bounds the size of a résumé file.
const MaxSize = 10 << 20

// Document errors.
var (
	ErrNotFound = eris.New("documents: not found")
	ErrTooLarge = eris.New("documents: file exceeds size limit")
	ErrBadPath  = eris.New("documents: invalid path")
)

// Source reads and writes résumé files by key.
type Source interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// NewSource creates the configured document source.
func NewSource(ctx context.Context, cfg config.DocumentsConfig) (Source, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocalSource(cfg.Dir), nil
	case "s3":
		return NewS3Source(ctx, cfg.S3)
	default:
		return nil, eris.Errorf("documents: unknown backend %q", cfg.Backend)
	}
}

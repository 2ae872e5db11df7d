package demo

import (
	"context"
	"log/slog"
	"path"

	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/ingest"
	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/session"
	"github.com/datachat/datachat/internal/storage"
)

type Ingester interface {
	Ingest(ctx context.Context, file ingest.File) ingest.Result
}

type SchemaSource interface {
	Describe(ctx context.Context) (schema.Schema, error)
}

type Loader struct {
	catalog  Catalog
	store    storage.ObjectStore
	ingestor Ingester
	schemas  SchemaSource
	logger   *slog.Logger
}

func NewLoader(catalog Catalog, store storage.ObjectStore, ingestor Ingester, schemas SchemaSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{catalog: catalog, store: store, ingestor: ingestor, schemas: schemas, logger: logger}
}

func (l *Loader) Datasets() []Dataset {
	out := make([]Dataset, len(l.catalog.Demos))
	copy(out, l.catalog.Demos)
	return out
}

func (l *Loader) Load(ctx context.Context, index int, state *session.State) (ingest.Result, error) {
	if index < 0 || index >= len(l.catalog.Demos) {
		return ingest.Result{}, errs.Newf(errs.KindNotFound, "demo %d not found", index)
	}
	dataset := l.catalog.Demos[index]
	if l.store == nil {
		return ingest.Result{}, errs.New(errs.KindConfig, "demo store is not configured")
	}

	key, err := storage.CleanKey(dataset.File)
	if err != nil {
		return ingest.Result{}, errs.Wrap(err, errs.KindConfig, "invalid demo file")
	}
	data, err := l.store.Get(ctx, key)
	if err != nil {
		if storage.IsNotFound(err) {
			return ingest.Result{}, err
		}
		return ingest.Result{}, errs.Wrap(err, errs.KindInternal, "fetch demo file")
	}

	result := l.ingestor.Ingest(ctx, ingest.File{Name: path.Base(key), Data: data})
	if len(result.Tables) > 0 && len(dataset.Questions) > 0 && state != nil {
		current, err := l.schemas.Describe(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "skip demo question seeding", "demo", dataset.Title, "error", err)
		} else {
			state.Questions.Seed(current.Fingerprint(), dataset.Questions)
		}
	}
	l.logger.InfoContext(ctx, "demo loaded", "demo", dataset.Title, "tables", len(result.Tables), "rows", result.Rows)
	return result, nil
}

/*
Package clone copies one search index, definition and documents, from a
source service to a target service.

The main components are:

  - SchemaCloner: copies the index definition.

  - Paginator: reads the source documents in pages ordered by the key field,
    each page starting after the key of the previous one.

  - Uploader: writes a page to the target as one indexing request.

  - Migration: runs the schema clone and then the page loop until the source
    returns an empty page.
*/
package clone

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/percona/search-clone/config"
	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/log"
	"github.com/percona/search-clone/metrics"
	"github.com/percona/search-clone/registry"
	"github.com/percona/search-clone/search"
)

// State is the phase of a [Migration].
type State string

const (
	// StateInit indicates that the migration has not started.
	StateInit State = "init"
	// StateSchemaCloning indicates that the index definition is being copied.
	StateSchemaCloning State = "schema-cloning"
	// StatePaginating indicates that a page is being read from the source.
	StatePaginating State = "paginating"
	// StateUploading indicates that a page is being written to the target.
	StateUploading State = "uploading"
	// StateDone indicates that every document has been copied.
	StateDone State = "done"
	// StateAborted indicates that the migration has failed.
	StateAborted State = "aborted"
)

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateAborted
}

// BatchProgress describes one uploaded batch.
type BatchProgress struct {
	// Batch is the 1-based batch number.
	Batch int
	// Size is the number of documents in the batch.
	Size int
	// Cursor is the key of the last document of the batch.
	Cursor Cursor
	// Copied is the number of documents copied so far, this batch included.
	Copied int64

	ReadDuration   time.Duration
	UploadDuration time.Duration
}

type (
	OnStateChangedFunc func(State)
	OnBatchFunc        func(BatchProgress)
)

// Options configures a [Migration].
type Options struct {
	// KeyField is the ordering key. Default: config.DefaultKeyField.
	KeyField string
	// PageSize is the number of documents per page and per upload.
	// Default: config.MaxPageSize.
	PageSize int

	// OnStateChanged is called on every state change.
	OnStateChanged OnStateChangedFunc
	// OnBatch is called after every uploaded batch.
	OnBatch OnBatchFunc
}

// Status is a snapshot of a [Migration].
type Status struct {
	State State
	Err   error

	Index  string
	Schema *SchemaResult

	// EstimatedTotal is the document count the source reported for the first
	// page. It is -1 when the source did not report one.
	EstimatedTotal int64
	Copied         int64
	Batches        int
	Cursor         Cursor

	StartTime  time.Time
	FinishTime time.Time
}

// Migration clones one index. It runs once.
type Migration struct {
	clients *registry.Registry
	index   string
	opts    Options

	lock   sync.Mutex
	status Status
}

// NewMigration returns a Migration of index using the clients of reg.
func NewMigration(reg *registry.Registry, index string, opts *Options) *Migration {
	o := Options{}
	if opts != nil {
		o = *opts
	}

	if o.KeyField == "" {
		o.KeyField = config.DefaultKeyField
	}

	if o.PageSize <= 0 {
		o.PageSize = config.MaxPageSize
	}

	if o.OnStateChanged == nil {
		o.OnStateChanged = func(State) {}
	}

	if o.OnBatch == nil {
		o.OnBatch = func(BatchProgress) {}
	}

	return &Migration{
		clients: reg,
		index:   index,
		opts:    o,
		status: Status{
			State:          StateInit,
			Index:          index,
			EstimatedTotal: -1,
		},
	}
}

// Status returns the current status.
func (m *Migration) Status() Status {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.status
}

func (m *Migration) setState(s State) {
	m.lock.Lock()
	m.status.State = s
	m.lock.Unlock()

	m.opts.OnStateChanged(s)
}

func (m *Migration) abort(err error) error {
	m.lock.Lock()
	m.status.State = StateAborted
	m.status.Err = err
	m.status.FinishTime = time.Now()
	m.lock.Unlock()

	m.opts.OnStateChanged(StateAborted)

	return err
}

type clients struct {
	sourceIndexes   *search.IndexClient
	sourceDocuments *search.DocumentClient
	targetIndexes   *search.IndexClient
	targetDocuments *search.DocumentClient
}

// resolve gets all four clients concurrently, so that a missing option is
// reported before any request is sent.
func (m *Migration) resolve() (*clients, error) {
	var c clients

	grp := errgroup.Group{}

	grp.Go(func() error {
		var err error
		c.sourceIndexes, err = m.clients.SourceIndexes()

		return err
	})
	grp.Go(func() error {
		var err error
		c.sourceDocuments, err = m.clients.SourceDocuments()

		return err
	})
	grp.Go(func() error {
		var err error
		c.targetIndexes, err = m.clients.TargetIndexes()

		return err
	})
	grp.Go(func() error {
		var err error
		c.targetDocuments, err = m.clients.TargetDocuments()

		return err
	})

	err := grp.Wait()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &c, nil
}

// Run clones the index definition and then copies the documents until the
// source returns an empty page. On failure the migration is aborted and
// nothing written to the target is rolled back.
func (m *Migration) Run(ctx context.Context) error {
	m.lock.Lock()
	if m.status.State != StateInit || !m.status.StartTime.IsZero() {
		state := m.status.State
		m.lock.Unlock()

		return errors.Errorf("cannot run: migration is %s", state)
	}

	m.status.StartTime = time.Now()
	m.lock.Unlock()

	lg := log.New("clone").With(log.Index(m.index))
	ctx = lg.WithContext(ctx)

	err := ctx.Err()
	if err != nil {
		return m.abort(err) //nolint:wrapcheck
	}

	c, err := m.resolve()
	if err != nil {
		return m.abort(err)
	}

	m.setState(StateSchemaCloning)

	schema, err := NewSchemaCloner(c.sourceIndexes, c.targetIndexes).Clone(ctx, m.index)
	if err != nil {
		metrics.IncFailures("schema")

		return m.abort(errors.Wrap(err, "clone schema"))
	}

	m.lock.Lock()
	m.status.Schema = schema
	m.lock.Unlock()

	err = m.copyDocuments(ctx, c)
	if err != nil {
		return m.abort(err)
	}

	st := m.finish()

	elapsed := st.FinishTime.Sub(st.StartTime)
	lg.With(log.Elapsed(elapsed), log.Count(st.Copied)).
		Infof("Cloned %s documents in %d batches in %s",
			humanize.Comma(st.Copied), st.Batches, elapsed.Round(time.Millisecond))

	if st.EstimatedTotal >= 0 && st.EstimatedTotal != st.Copied {
		lg.Warnf("Source reported %s documents, copied %s",
			humanize.Comma(st.EstimatedTotal), humanize.Comma(st.Copied))
	}

	return nil
}

func (m *Migration) finish() Status {
	m.lock.Lock()
	m.status.State = StateDone
	m.status.FinishTime = time.Now()
	st := m.status
	m.lock.Unlock()

	metrics.SetLastSuccess(st.FinishTime)
	m.opts.OnStateChanged(StateDone)

	return st
}

func (m *Migration) copyDocuments(ctx context.Context, c *clients) error {
	lg := log.Ctx(ctx)

	paginator := NewPaginator(c.sourceDocuments, m.opts.KeyField, m.opts.PageSize)
	uploader := NewUploader(c.targetDocuments, m.opts.KeyField)

	var (
		cursor Cursor
		copied int64
	)

	for n := 1; ; n++ {
		err := ctx.Err()
		if err != nil {
			return errors.Wrapf(err, "batch %d", n)
		}

		m.setState(StatePaginating)

		readStart := time.Now()

		batch, err := paginator.Next(ctx, cursor)
		if err != nil {
			metrics.IncFailures("read")

			return errors.Wrapf(err, "batch %d", n)
		}

		readDur := time.Since(readStart)
		metrics.SetCopyReadBatchDurationSeconds(readDur)
		metrics.AddCopyReadDocumentCount(batch.Len())

		if n == 1 && batch.TotalCount != nil {
			m.lock.Lock()
			m.status.EstimatedTotal = *batch.TotalCount
			m.lock.Unlock()

			metrics.SetEstimatedTotalDocuments(*batch.TotalCount)
			lg.Infof("Source index has about %s documents", humanize.Comma(*batch.TotalCount))
		}

		if batch.Len() == 0 {
			lg.Debugf("Empty page after %s: nothing left to copy", cursor)

			return nil
		}

		err = checkAdvance(cursor, batch, m.opts.KeyField)
		if err != nil {
			metrics.IncFailures("read")

			return errors.Wrapf(err, "batch %d", n)
		}

		m.setState(StateUploading)

		uploadStart := time.Now()

		next, err := uploader.Upload(ctx, batch)
		if err != nil {
			metrics.IncFailures("upload")

			return errors.Wrapf(err, "batch %d", n)
		}

		uploadDur := time.Since(uploadStart)

		cursor = next
		copied += int64(batch.Len())

		metrics.SetCopyUploadBatchDurationSeconds(uploadDur)
		metrics.AddCopyUploadDocumentCount(batch.Len())
		metrics.ObserveCopyBatch(batch.Len())

		m.lock.Lock()
		m.status.Copied = copied
		m.status.Batches = n
		m.status.Cursor = cursor
		m.lock.Unlock()

		lg.With(log.Batch(n), log.Count(int64(batch.Len())), log.Cursor(cursor.String())).
			Infof("Cloned batch of %d through %s %s", batch.Len(), m.opts.KeyField, cursor)

		m.opts.OnBatch(BatchProgress{
			Batch:          n,
			Size:           batch.Len(),
			Cursor:         cursor,
			Copied:         copied,
			ReadDuration:   readDur,
			UploadDuration: uploadDur,
		})
	}
}

// checkAdvance fails with a [SourceQueryError] unless the last key of batch
// is after cursor. A source that ignores the filter would otherwise be paged
// forever.
func checkAdvance(cursor Cursor, batch *Batch, keyField string) error {
	key, err := documentKey(batch.Documents[batch.Len()-1], keyField)
	if err != nil {
		return &SourceQueryError{Cursor: cursor, Err: err}
	}

	last := CursorAt(key)

	after, err := last.After(cursor)
	if err != nil {
		return &SourceQueryError{Cursor: cursor, Err: err}
	}

	if !after {
		return &SourceQueryError{
			Cursor: cursor,
			Err:    errors.Errorf("page ends at key %s, which is not after the cursor", last),
		}
	}

	return nil
}

package clone

import (
	"context"

	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/search"
)

// DocumentUploader writes documents, replacing those with the same key.
type DocumentUploader interface {
	UploadDocuments(ctx context.Context, docs []search.Document) (*search.IndexDocumentsResult, error)
}

// Uploader writes batches to the target index.
type Uploader struct {
	target   DocumentUploader
	keyField string
}

func NewUploader(target DocumentUploader, keyField string) *Uploader {
	return &Uploader{target: target, keyField: keyField}
}

// Upload writes every document of batch in one request and returns the
// cursor at the last document. Any document the target rejects fails the
// whole batch with a [TargetWriteError].
func (u *Uploader) Upload(ctx context.Context, batch *Batch) (Cursor, error) {
	if batch.Len() == 0 {
		return Cursor{}, errors.New("empty batch")
	}

	last, err := documentKey(batch.Documents[batch.Len()-1], u.keyField)
	if err != nil {
		return Cursor{}, errors.Wrap(err, "last document")
	}

	res, err := u.target.UploadDocuments(ctx, batch.Documents)
	if err != nil {
		return Cursor{}, &TargetWriteError{Err: err}
	}

	failed := res.Failed()
	if len(failed) != 0 {
		keys := make([]string, len(failed))
		for i, r := range failed {
			keys[i] = r.Key
		}

		first := failed[0]

		return Cursor{}, &TargetWriteError{
			FailedKeys: keys,
			Err: errors.Errorf("%s: status %d: %s",
				first.Key, first.StatusCode, first.ErrorMessage),
		}
	}

	if len(res.Results) != batch.Len() {
		return Cursor{}, &TargetWriteError{
			Err: errors.Errorf("got %d results for %d documents", len(res.Results), batch.Len()),
		}
	}

	return CursorAt(last), nil
}

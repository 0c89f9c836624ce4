package audit

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tablechat/tablechat/internal/history"
	"github.com/tablechat/tablechat/internal/storage"
)

const parquetContentType = "application/vnd.apache.parquet"

// Uploader archives session history snapshots to an object store.
type Uploader struct {
	store storage.ObjectStore
}

func NewUploader(store storage.ObjectStore) (*Uploader, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	return &Uploader{store: store}, nil
}

type UploadResult struct {
	Key         string `json:"key"`
	SizeBytes   int64  `json:"size_bytes"`
	RecordCount int64  `json:"record_count"`
}

// Upload encodes the snapshot as parquet and writes it under the session's
// export path.
func (u *Uploader) Upload(ctx context.Context, snapshot history.Snapshot) (UploadResult, error) {
	encoded, err := EncodeSnapshotToParquet(snapshot)
	if err != nil {
		return UploadResult{}, err
	}

	key, err := storage.BuildExportPath(snapshot.SessionID, snapshot.ExportedAt)
	if err != nil {
		return UploadResult{}, err
	}

	info, err := u.store.Put(ctx, key, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{
		ContentType: parquetContentType,
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload export %q: %w", key, err)
	}

	return UploadResult{
		Key:         key,
		SizeBytes:   info.Size,
		RecordCount: encoded.RecordCount,
	}, nil
}

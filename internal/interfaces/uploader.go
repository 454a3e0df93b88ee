package interfaces

import "context"

type Uploader interface {
	UploadBytes(ctx context.Context, folder string, filename string, b []byte) (string, error)
	// UploadURL ingests a remote file by URL (used for generated avatars).
	UploadURL(ctx context.Context, folder string, filename string, url string) (string, error)
}

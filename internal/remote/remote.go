// Package remote moves finished archives to their destination and lets the
// retention engine enumerate and delete them there.
package remote

import "context"

// Backend is one archive destination. Paths are destination-relative; List
// returns base names under the given prefix.
type Backend interface {
	Upload(ctx context.Context, localPath, remotePath, checksumHash string) error
	Download(ctx context.Context, remotePath, localPath string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, remotePath string) error
}

// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil { ... }
//
//	store := s3blob.NewStore(s3.NewFromConfig(cfg), "my-bucket", "backups/")
//
//	info, err := db.Backup(ctx, store, "snap-001.kvs", nil)
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large snapshots
//   - CRC32C integrity validation on uploads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3

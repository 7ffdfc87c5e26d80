// Package blob resolves storage-disk attachment references. A Registry maps
// disk names to backends (S3-compatible object storage, or a local directory
// for development) and satisfies the attachment manager's opener capability.
package blob

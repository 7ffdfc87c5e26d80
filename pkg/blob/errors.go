package blob

import "errors"

var (
	// ErrUnknownDisk indicates no disk is registered under the name.
	ErrUnknownDisk = errors.New("blob: unknown disk")

	// ErrNotFound indicates the key does not exist on the disk.
	ErrNotFound = errors.New("blob: object not found")

	// ErrInvalidConfig indicates required S3 configuration is missing.
	ErrInvalidConfig = errors.New("blob: invalid config")
)

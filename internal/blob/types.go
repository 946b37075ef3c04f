// Package blob is the entry point to the blob drivers. Other packages depend
// on the Store interface re-exported here, never on a driver package.
package blob

import (
	"ritual/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrNotFound is wrapped by Get and Head lookups on a missing key.
	ErrNotFound = core.ErrNotFound
	// ErrExists is wrapped by Put when the key is taken and Overwrite is false.
	ErrExists = core.ErrExists
)

// Package blob handles the image objects backing tree records. Objects live
// in an S3-compatible bucket; a pending tree's photo sits under the private
// prefix and is moved under the public prefix when the tree is approved.
package blob

import "context"

// Store is the object-storage surface the registry depends on.
type Store interface {
	// Relocate moves the object at privateRef to its derived public
	// reference and returns that reference. After a successful return
	// exactly one readable copy exists: the public one. A relocation that
	// already happened in a previous partial run (source gone, destination
	// present) is reported as success so the operation is safe to re-invoke.
	// Fails with common.ErrBlobNotFound when neither copy exists and
	// common.ErrBlobRelocationFailed on any storage fault.
	Relocate(ctx context.Context, privateRef string) (string, error)

	// SetPublic marks the object publicly readable (a flag on the blob
	// itself, independent of the record).
	SetPublic(ctx context.Context, ref string) error

	// PublicURL returns the permanent, unauthenticated URL of a public
	// object. Purely computational: no storage round trip.
	PublicURL(ref string) string

	// PresignPut returns a short-lived URL for uploading a new object.
	PresignPut(ctx context.Context, ref string) (string, error)

	// PresignGet returns a short-lived download URL, used to preview
	// private images in the moderation queue.
	PresignGet(ctx context.Context, ref string) (string, error)
}

package reset

import "context"

// GalleryStorage removes gallery image objects after their rows are gone
type GalleryStorage interface {
	DeleteObject(ctx context.Context, storageKey string) error
}

package area

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/blobstore"
)

const imageField = "image_file"

// MaxFileSize is the upload limit for area images in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// ImageKey is the blob key an area's image with extension ext is stored
// under. Re-uploading with the same extension overwrites the blob.
func ImageKey(areaID int64, ext string) string {
	return fmt.Sprintf("%d_img.%s", areaID, strings.ToLower(ext))
}

// fileExtension returns the lower-cased text after the last dot, or "" when
// the name has none (a leading dot does not count).
func fileExtension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i <= 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

// SetImage stores r as the area's image. The extension of filename must be
// one the area's view type accepts.
func (s *Service) SetImage(ctx context.Context, id int64, filename string, r io.Reader) (*Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionUpdate); err != nil {
		return nil, err
	}
	a, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	ext := fileExtension(filename)
	if ext == "" || !a.AreaViewType.Supports(ext) {
		return nil, newImageError("File type not supported.", filename)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, newImageError(fmt.Sprintf("File length must be <= %d", s.maxFileSize), filename)
	}

	key := ImageKey(a.ID, ext)
	if err := s.images.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mime.TypeByExtension("."+ext)); err != nil {
		return nil, fmt.Errorf("storing image for area %d: %w", a.ID, err)
	}
	oldKey := a.ImagePath
	if err := s.repo.SetImagePath(ctx, a, key); err != nil {
		if key != oldKey {
			s.deleteImage(ctx, key)
		}
		return nil, err
	}
	if oldKey != key {
		s.deleteImage(ctx, oldKey)
	}

	s.audit.Record(ctx, audit.ActionUpdate, auditArea, a.ID, map[string]any{"image_path": key, "bytes": len(data)})
	s.emit(ctx, Event{Name: EventImageSet, ProjectID: a.ProjectID, AreaID: a.ID, Data: a, Bytes: int64(len(data))})
	return a, nil
}

// GetImage opens the area's stored image. The caller closes the reader.
func (s *Service) GetImage(ctx context.Context, id int64) (io.ReadCloser, *Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionFind); err != nil {
		return nil, nil, err
	}
	a, err := s.owned(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if a.ImagePath == "" {
		return nil, nil, ErrImageNotFound
	}
	rc, err := s.images.Get(ctx, a.ImagePath)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, nil, ErrImageNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening image for area %d: %w", a.ID, err)
	}
	return rc, a, nil
}

// UnsetImage deletes the stored image, if any, and clears the path.
func (s *Service) UnsetImage(ctx context.Context, id int64) (*Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionUpdate); err != nil {
		return nil, err
	}
	a, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	oldKey := a.ImagePath
	if err := s.repo.SetImagePath(ctx, a, ""); err != nil {
		return nil, err
	}
	s.deleteImage(ctx, oldKey)

	s.audit.Record(ctx, audit.ActionUpdate, auditArea, a.ID, map[string]any{"image_path": nil})
	s.emit(ctx, Event{Name: EventImageUnset, ProjectID: a.ProjectID, AreaID: a.ID, Data: a})
	return a, nil
}

func newImageError(msg, filename string) error {
	return entity.NewValidationError(imageField, msg, filename)
}

// Package storage wraps the object-storage collaborator that holds uploaded
// verification documents. The contract with the core is small: store a
// binary and return a retrievable URL, delete it again on request.
package storage

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// DocumentStorage stores and deletes verification documents.
type DocumentStorage interface {
	Upload(ctx context.Context, file multipart.File, folder, publicID string) (url string, err error)
	Destroy(ctx context.Context, folder, publicID string) error
}

// CloudinaryStorage implements DocumentStorage over Cloudinary.
type CloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryStorage initializes the Cloudinary client from credentials.
func NewCloudinaryStorage(cloudName, apiKey, apiSecret string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld}, nil
}

// Upload stores the document and returns its secure URL. The publicID is
// deterministic per account and dimension so a resubmission overwrites the
// prior asset instead of orphaning it.
func (s *CloudinaryStorage) Upload(ctx context.Context, file multipart.File, folder, publicID string) (string, error) {
	overwrite := true
	result, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		Overwrite:    &overwrite,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %w", err)
	}
	return result.SecureURL, nil
}

// Destroy deletes the underlying asset. Uploading with a Folder param stores
// the asset under a folder-qualified public ID, so the delete has to address
// it the same way.
func (s *CloudinaryStorage) Destroy(ctx context.Context, folder, publicID string) error {
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: folder + "/" + publicID})
	if err != nil {
		return fmt.Errorf("cloudinary destroy failed: %w", err)
	}
	return nil
}

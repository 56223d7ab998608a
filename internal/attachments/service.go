// Package attachments stores uploaded files (expense receipts, logos) as
// encrypted blobs plus a metadata row in the tenant database. The original
// filename never touches the filesystem.
package attachments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abrahampo1/cryptogest-sub001/internal/blobcipher"
	"github.com/abrahampo1/cryptogest-sub001/internal/models"
	"github.com/abrahampo1/cryptogest-sub001/internal/store/documents"
)

type Service struct {
	docs  documents.Repository
	blobs *blobcipher.Store
}

func NewService(docs documents.Repository, blobs *blobcipher.Store) *Service {
	return &Service{docs: docs, blobs: blobs}
}

// Save encrypts data under the session key, writes the blob and records the
// metadata row. If the metadata insert fails the orphan blob is removed.
func (s *Service) Save(ctx context.Context, originalName, contentType string, data, sessionKey []byte) (*models.Document, error) {
	opaque, err := s.blobs.Encrypt(data, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt attachment: %w", err)
	}

	doc := &models.Document{
		ID:           uuid.NewString(),
		OpaqueName:   opaque,
		OriginalName: originalName,
		ContentType:  contentType,
		SizeBytes:    int64(len(data)),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		_ = s.blobs.Remove(opaque)
		return nil, err
	}
	return doc, nil
}

// Load decrypts the blob behind the document id.
func (s *Service) Load(ctx context.Context, id string, sessionKey []byte) ([]byte, *models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Decrypt(doc.OpaqueName, sessionKey)
	if err != nil {
		return nil, nil, err
	}
	return data, doc, nil
}

// Delete removes the metadata row first, then the blob; a leftover blob
// without a row is unreadable garbage, a row without a blob is a broken
// reference, so the row goes first.
func (s *Service) Delete(ctx context.Context, id string) error {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.DeleteByID(ctx, id); err != nil {
		return err
	}
	return s.blobs.Remove(doc.OpaqueName)
}

// List returns the metadata rows for all stored attachments.
func (s *Service) List(ctx context.Context) ([]models.Document, error) {
	return s.docs.GetAll(ctx)
}

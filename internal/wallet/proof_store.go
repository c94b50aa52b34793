package wallet

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type ProofStore interface {
	// Put stores the proof for an order. A later Put for the same order
	// replaces the earlier image.
	Put(ctx context.Context, orderNumber string, data []byte) (*StoredProof, error)
}

type uploadAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

type cloudinaryStore struct {
	api    uploadAPI
	folder string
}

func NewCloudinaryStore(cld *cloudinary.Cloudinary, folder string) ProofStore {
	return &cloudinaryStore{api: &cld.Upload, folder: folder}
}

func (s *cloudinaryStore) Put(ctx context.Context, orderNumber string, data []byte) (*StoredProof, error) {
	res, err := s.api.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     "proof_" + orderNumber,
		Overwrite:    api.Bool(true),
		Invalidate:   api.Bool(true),
		ResourceType: "image",
	})
	if err != nil {
		return nil, err
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrProofRejected, res.Error.Message)
	}

	return &StoredProof{
		URL:      res.SecureURL,
		PublicID: res.PublicID,
		Bytes:    int64(res.Bytes),
		StoredAt: time.Now(),
	}, nil
}

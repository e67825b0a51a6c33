package storage

import (
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/gabriel-vasile/mimetype"
)

// MaxAvatarSize is the largest accepted avatar upload.
const MaxAvatarSize = 5 << 20

// Image is a validated avatar upload held in memory.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ReadImage reads at most MaxAvatarSize bytes from r and checks by content
// sniffing that they are an image. Validation failures wrap
// common.ErrorValidation.
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarSize+1))
	if err != nil {
		return nil, fmt.Errorf("read avatar: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: avatar file is empty", common.ErrorValidation)
	}
	if len(data) > MaxAvatarSize {
		return nil, fmt.Errorf("%w: avatar must be at most 5MB", common.ErrorValidation)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: avatar must be an image", common.ErrorValidation)
	}

	return &Image{
		Data:        data,
		ContentType: mt.String(),
		Ext:         mt.Extension(),
	}, nil
}

// Package uploads resizes uploaded images into the public directory.
package uploads

import (
	"context"
	"fmt"
	"image"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	UserPhotoSize   = 500
	TourImageWidth  = 2000
	TourImageHeight = 1333
	MaxTourImages   = 3
	jpegQuality     = 90
)

// ErrNotImage is returned for uploads that are not decodable images.
func ErrNotImage() *apperror.AppError {
	return apperror.BadRequest("Not an image! Please upload only images.")
}

// Processor writes resized JPEGs under root/img.
type Processor struct {
	root string
	now  func() time.Time
}

func NewProcessor(publicDir string) *Processor {
	return &Processor{root: publicDir, now: time.Now}
}

// SaveUserPhoto stores a 500x500 crop and returns its file name.
func (p *Processor) SaveUserPhoto(fh *multipart.FileHeader, userID string) (string, error) {
	name := fmt.Sprintf("user-%s-%d.jpeg", userID, p.now().UnixMilli())
	if err := p.resize(fh, UserPhotoSize, UserPhotoSize, filepath.Join(p.root, "img", "users", name)); err != nil {
		return "", err
	}
	return name, nil
}

// SaveTourImages stores the cover and gallery images concurrently. Either
// argument may be empty; only the first MaxTourImages gallery images are
// kept.
func (p *Processor) SaveTourImages(ctx context.Context, cover *multipart.FileHeader, images []*multipart.FileHeader, tourID string) (string, []string, error) {
	stamp := p.now().UnixMilli()
	dir := filepath.Join(p.root, "img", "tours")
	if len(images) > MaxTourImages {
		images = images[:MaxTourImages]
	}

	g, _ := errgroup.WithContext(ctx)
	var coverName string
	if cover != nil {
		coverName = fmt.Sprintf("tour-%s-%d-cover.jpeg", tourID, stamp)
		g.Go(func() error {
			return p.resize(cover, TourImageWidth, TourImageHeight, filepath.Join(dir, coverName))
		})
	}
	names := make([]string, len(images))
	for i, fh := range images {
		i, fh := i, fh
		names[i] = fmt.Sprintf("tour-%s-%d-%d.jpeg", tourID, stamp, i+1)
		g.Go(func() error {
			return p.resize(fh, TourImageWidth, TourImageHeight, filepath.Join(dir, names[i]))
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	return coverName, names, nil
}

func (p *Processor) resize(fh *multipart.FileHeader, width, height int, dst string) error {
	if !strings.HasPrefix(fh.Header.Get("Content-Type"), "image/") {
		return ErrNotImage()
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return apperror.Wrap(err, ErrNotImage().StatusCode, ErrNotImage().Message)
	}
	return writeJPEG(imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos), dst)
}

// writeJPEG encodes to a temporary file and renames it into place so
// readers never observe a partial image.
func writeJPEG(img image.Image, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(filepath.Dir(dst), "."+uuid.NewString()+".part")
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := imaging.Encode(out, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

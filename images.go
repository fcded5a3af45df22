package nebula

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/eringen/nebula/logger"
)

const (
	maxImageWidth = 800
	jpegQuality   = 80
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
)

var errNotDataURL = errors.New("not a base64 image data URL")

// processImage decodes an image from src, resizes it to at most
// maxImageWidth and encodes it as JPEG.
func processImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeDataURL returns the payload of a base64 image data URL.
func decodeDataURL(ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "data:image/") {
		return nil, errNotDataURL
	}
	comma := strings.IndexByte(ref, ',')
	if comma < 0 || !strings.HasSuffix(ref[:comma], ";base64") {
		return nil, errNotDataURL
	}
	return base64.StdEncoding.DecodeString(ref[comma+1:])
}

// ImageStore writes processed images under <static>/uploads and returns
// their public paths.
type ImageStore struct {
	dir    string
	prefix string
	log    logger.Logger
}

// NewImageStore stores files in staticDir/uploads, served at /public/uploads/.
func NewImageStore(staticDir string, log logger.Logger) *ImageStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &ImageStore{
		dir:    filepath.Join(staticDir, uploadsSubdir),
		prefix: "/public/" + uploadsSubdir + "/",
		log:    log,
	}
}

// Save processes the image read from src and returns its public path.
func (s *ImageStore) Save(src io.Reader) (string, error) {
	data, err := processImage(src)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}
	name := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return s.prefix + name, nil
}

// SaveDataURL stores an inline base64 image.
func (s *ImageStore) SaveDataURL(ref string) (string, error) {
	raw, err := decodeDataURL(ref)
	if err != nil {
		return "", err
	}
	return s.Save(bytes.NewReader(raw))
}

// Materialize replaces inline images with stored files. Remote URLs are kept
// and so is any inline image that fails to store.
func (s *ImageStore) Materialize(images []string) []string {
	out := make([]string, len(images))
	for i, ref := range images {
		out[i] = ref
		if !strings.HasPrefix(ref, "data:") {
			continue
		}
		path, err := s.SaveDataURL(ref)
		if err != nil {
			s.log.Warn("Keeping inline image", logger.Int("index", i), logger.Error(err))
			continue
		}
		out[i] = path
	}
	return out
}

// handleCoverUpload replaces a post's cover with an uploaded image.
func (a *App) handleCoverUpload(c echo.Context) error {
	post, err := a.Store.GetPost(c.Param("id"))
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return echo.NewHTTPError(http.StatusBadRequest, "File too large (max 10MB)")
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	path, err := a.images.Save(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid image: "+err.Error())
	}

	old := post.CoverImage
	post.CoverImage = path
	if len(post.Images) > 0 && post.Images[0] == old {
		post.Images[0] = path
	}
	if err := a.Store.SavePost(post); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Metrics.ObservePostSaved(string(post.Status))
	return c.JSON(http.StatusOK, post)
}

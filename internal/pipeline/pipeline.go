package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/url"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imagineos/tapthepost/internal/archive"
	"github.com/imagineos/tapthepost/internal/compose"
	"github.com/imagineos/tapthepost/internal/models"
	"github.com/imagineos/tapthepost/internal/proxy"
	"github.com/imagineos/tapthepost/internal/session"
)

// RemoteImages fetches an image URL through the proxy boundary
type RemoteImages interface {
	Fetch(ctx context.Context, rawURL string) (*proxy.Result, error)
}

// Pipeline wires decode, layout, composite and archive together for the
// slicer and stitcher features.
type Pipeline struct {
	Proxy       RemoteImages
	SliceCount  int
	JPEGQuality int
	// Concurrency bounds how many uploads are decoded at once
	Concurrency int
	// MaxPixels caps both decoded images and the export canvas
	MaxPixels   int64
	Now         func() time.Time
}

// ErrRemoved reports that an image left the working set while it was being
// decoded, so its result was discarded.
var ErrRemoved = errors.New("image was removed before decoding finished")

// New returns a pipeline with the stock slicer settings
func New(remote RemoteImages) *Pipeline {
	return &Pipeline{
		Proxy:       remote,
		SliceCount:  compose.DefaultSliceCount,
		JPEGQuality: 95,
		Concurrency: 4,
		MaxPixels:   compose.DefaultMaxPixels,
		Now:         time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Upload is a local file supplied by the user
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// AddResult reports what happened to one item of an add or import
type AddResult struct {
	ID     string        `json:"id,omitempty"`
	Name   string        `json:"name"`
	Status models.Status `json:"status"`
	Err    error         `json:"-"`
}

// AddFiles appends uploads to the working set in arrival order and decodes
// them. Each outcome is attached to its own identity, so reorders or removals
// that happen meanwhile cannot misplace a result. Images that fail to decode
// are dropped from the working set and reported in their AddResult.
func (p *Pipeline) AddFiles(ctx context.Context, sess *session.Session, uploads []Upload) []AddResult {
	items := make([]session.NewImage, len(uploads))
	for i, u := range uploads {
		items[i] = session.NewImage{Name: u.Name, Origin: models.OriginUpload, ContentType: u.ContentType, Data: u.Data}
	}
	ids := sess.Add(items...)

	results := make([]AddResult, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	}

	for i, u := range uploads {
		results[i] = AddResult{ID: ids[i], Name: u.Name, Status: models.Pending{}}
		g.Go(func() error {
			results[i] = p.decodeInto(gctx, sess, ids[i], u)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) decodeInto(ctx context.Context, sess *session.Session, id string, u Upload) AddResult {
	res := AddResult{ID: id, Name: u.Name}

	if !sess.MarkDecoding(id) {
		res.Status = models.Failed{Reason: ErrRemoved.Error()}
		res.Err = ErrRemoved
		return res
	}

	decoded, err := compose.DecodeBytesWithin(ctx, u.Name, u.Data, p.MaxPixels)
	if err != nil {
		sess.Fail(id)
		slog.Warn("Failed to decode upload", "session_id", sess.ID, "name", u.Name, "err", err)
		res.Status = models.Failed{Reason: err.Error()}
		res.Err = err
		return res
	}

	if !sess.Resolve(id, decoded) {
		slog.Debug("Discarding decode of removed image", "session_id", sess.ID, "image_id", id)
		res.Status = models.Failed{Reason: ErrRemoved.Error()}
		res.Err = ErrRemoved
		return res
	}

	res.Status = models.Ready{Width: decoded.Width, Height: decoded.Height}
	return res
}

// Import fetches a remote image through the proxy and adds it to the working
// set. Proxy and decode failures leave the working set untouched.
func (p *Pipeline) Import(ctx context.Context, sess *session.Session, rawURL string) (AddResult, error) {
	if p.Proxy == nil {
		return AddResult{}, &compose.ProxyError{Message: "remote import is not configured"}
	}

	fetched, err := p.Proxy.Fetch(ctx, rawURL)
	if err != nil {
		var proxyErr *compose.ProxyError
		if !errors.As(err, &proxyErr) {
			err = &compose.ProxyError{Message: err.Error()}
		}
		return AddResult{}, err
	}

	uri := fetched.DataURI()
	name := remoteName(fetched.URL)
	decoded, contentType, data, err := compose.DecodeDataURIWithin(ctx, name, uri, p.MaxPixels)
	if err != nil {
		return AddResult{}, err
	}

	ids := sess.Add(session.NewImage{
		Name:        name,
		Origin:      models.OriginProxy,
		ContentType: contentType,
		Data:        data,
	})
	sess.Resolve(ids[0], decoded)

	slog.Info("Imported remote image", "session_id", sess.ID, "image_id", ids[0], "url", fetched.URL)
	return AddResult{ID: ids[0], Name: name, Status: models.Ready{Width: decoded.Width, Height: decoded.Height}}, nil
}

func remoteName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "remote-image"
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "remote-image"
	}
	return name
}

// Export composites the working set with the session's layout and encodes
// it as PNG. On any failure the working set is left as it was.
func (p *Pipeline) Export(ctx context.Context, sess *session.Session) (*archive.File, models.CompositeSpec, error) {
	entries, mode, err := sess.Ready()
	if err != nil {
		return nil, models.CompositeSpec{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, models.CompositeSpec{}, err
	}

	dims := make([]image.Point, len(entries))
	images := make([]image.Image, len(entries))
	for i, e := range entries {
		w, h, _ := e.Dimensions()
		dims[i] = image.Pt(w, h)
		images[i] = e.Decoded
	}

	spec, err := compose.LayoutWithin(mode, dims, p.MaxPixels)
	if err != nil {
		return nil, models.CompositeSpec{}, err
	}

	canvas, err := compose.Composite(spec, images)
	if err != nil {
		return nil, spec, err
	}

	data, err := compose.EncodePNG(canvas)
	if err != nil {
		return nil, spec, err
	}

	file := &archive.File{
		Name:        archive.CompositeFilename(mode, p.now()),
		ContentType: archive.ContentTypePNG,
		Data:        data,
	}

	slog.Info("Composite exported", "session_id", sess.ID, "layout", mode, "images", len(entries), "width", spec.Width, "height", spec.Height, "bytes", len(data))
	return file, spec, nil
}

// SliceResult holds the encoded bands and the archive that bundles them
type SliceResult struct {
	Width   int
	Height  int
	Slices  []archive.File
	Archive archive.File
}

// SliceImage decodes one image, cuts it into bands and zips them. Either every
// band is produced or an error is returned.
func (p *Pipeline) SliceImage(ctx context.Context, name string, data []byte) (*SliceResult, error) {
	decoded, err := compose.DecodeBytesWithin(ctx, name, data, p.MaxPixels)
	if err != nil {
		return nil, err
	}

	count := p.SliceCount
	if count == 0 {
		count = compose.DefaultSliceCount
	}
	bands, err := compose.Slice(decoded.Image, count)
	if err != nil {
		return nil, err
	}

	quality := p.JPEGQuality
	if quality == 0 {
		quality = 95
	}

	files := make([]archive.File, len(bands))
	for i, band := range bands {
		encoded, err := compose.EncodeJPEG(band.Image, quality)
		if err != nil {
			return nil, err
		}
		files[i] = archive.File{Name: archive.SliceFilename(band.Number), ContentType: archive.ContentTypeJPEG, Data: encoded}
	}

	zipped, err := archive.Zip(files)
	if err != nil {
		return nil, err
	}

	slog.Info("Image sliced", "name", name, "slices", len(files), "width", decoded.Width, "height", decoded.Height)
	return &SliceResult{
		Width:   decoded.Width,
		Height:  decoded.Height,
		Slices:  files,
		Archive: archive.File{Name: archive.SlicesArchiveName, ContentType: archive.ContentTypeZip, Data: zipped},
	}, nil
}

package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ErrPermanent marks a sink failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent export failure")

// Persister stores an encoded export.
type Persister interface {
	Save(ctx context.Context, blob Blob) error
}

// Notifier announces that an export is ready.
type Notifier interface {
	Mail(ctx context.Context, name string) error
}

// DirSink writes exports into a local directory.
type DirSink struct {
	Dir string
}

func (d *DirSink) Save(_ context.Context, blob Blob) error {
	name, err := SafeName(blob.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.Dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(blob.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(d.Dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// SafeName rejects names that could leave the target directory.
func SafeName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return name, nil
}

// HTTPSink posts exports as form data: data_dir, file_name and exp_data.
type HTTPSink struct {
	Client  *http.Client
	SaveURL string
	DataDir string
}

func (h *HTTPSink) Save(ctx context.Context, blob Blob) error {
	form := url.Values{
		"data_dir":  {h.DataDir},
		"file_name": {blob.Name},
		"exp_data":  {string(blob.Data)},
	}
	return postForm(ctx, h.Client, h.SaveURL, form)
}

// HTTPNotifier posts file_name to the mail endpoint.
type HTTPNotifier struct {
	Client  *http.Client
	MailURL string
}

func (h *HTTPNotifier) Mail(ctx context.Context, name string) error {
	return postForm(ctx, h.Client, h.MailURL, url.Values{"file_name": {name}})
}

// HTTPUploader asks the collector to forward a saved file to remote storage.
type HTTPUploader struct {
	Client    *http.Client
	UploadURL string
	DataDir   string
}

func (h *HTTPUploader) Save(ctx context.Context, blob Blob) error {
	return postForm(ctx, h.Client, h.UploadURL, url.Values{
		"data_dir":  {h.DataDir},
		"file_name": {blob.Name},
	})
}

func postForm(ctx context.Context, client *http.Client, target string, form url.Values) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", target, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return fmt.Errorf("%w: post %s: status %d: %s", ErrPermanent, target, resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("post %s: status %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// ExportLog records exports in the session store.
type ExportLog interface {
	RecordExport(ctx context.Context, sessionID, name, contentType string, data []byte) error
}

// StoreSink keeps a copy of every export in the session store.
type StoreSink struct {
	Log       ExportLog
	SessionID string
}

func (s *StoreSink) Save(ctx context.Context, blob Blob) error {
	return s.Log.RecordExport(ctx, s.SessionID, blob.Name, blob.ContentType, blob.Data)
}

// Multi saves to every persister and joins their errors.
type Multi []Persister

func (m Multi) Save(ctx context.Context, blob Blob) error {
	var errs []error
	for _, p := range m {
		if err := p.Save(ctx, blob); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

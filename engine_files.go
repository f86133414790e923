package spartanfiles

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/brianalban07/spartanfiles.github.io/pathsafe"
)

// require is the session gate in front of every storage operation. It runs before any
// filesystem access.
func (r *Repository) require(ctx context.Context) (*Principal, error) {
	if r == nil || r.files == nil {
		return nil, ErrEngineNotReady
	}
	p := PrincipalFromContext(ctx)
	if p == nil || p.issuer != r || p.Username == "" {
		r.metricInc(MetricUnauthorized)
		return nil, ErrUnauthorized
	}
	if !p.ExpiresAt.IsZero() && !time.Now().Before(p.ExpiresAt) {
		r.metricInc(MetricUnauthorized)
		return nil, ErrUnauthorized
	}
	return p, nil
}

func (r *Repository) countFailure(err error) {
	switch {
	case errors.Is(err, ErrInvalidPath):
		r.metricInc(MetricInvalidPath)
	case errors.Is(err, ErrNotFound):
		r.metricInc(MetricNotFound)
	case errors.Is(err, ErrDisallowedFileType), errors.Is(err, ErrTooLarge):
		r.metricInc(MetricUploadRejected)
	case errors.Is(err, ErrStorage):
		r.metricInc(MetricStorageError)
		r.logger.Error("storage failure", "error", err)
	}
}

// ListDepartments returns the configured departments in declared order.
func (r *Repository) ListDepartments(ctx context.Context) ([]string, error) {
	if _, err := r.require(ctx); err != nil {
		return nil, err
	}
	return r.browser.Departments(), nil
}

// ListCategories returns the sorted categories of dept. A department without a directory has
// no categories yet and yields an empty slice.
func (r *Repository) ListCategories(ctx context.Context, dept string) ([]string, error) {
	if _, err := r.require(ctx); err != nil {
		return nil, err
	}
	cats, err := r.browser.Categories(dept)
	if err != nil {
		r.countFailure(err)
		return nil, err
	}
	return cats, nil
}

// Tree returns every department with its categories, for the index view.
func (r *Repository) Tree(ctx context.Context) ([]Listing, error) {
	if _, err := r.require(ctx); err != nil {
		return nil, err
	}
	tree, err := r.browser.Tree()
	if err != nil {
		r.countFailure(err)
		return nil, err
	}
	return tree, nil
}

// ListFiles returns the files of one category sorted by name. A category that does not exist
// is ErrNotFound.
func (r *Repository) ListFiles(ctx context.Context, dept, category string) ([]FileInfo, error) {
	if _, err := r.require(ctx); err != nil {
		return nil, err
	}
	dir, err := r.resolver.Category(dept, category)
	if err != nil {
		r.countFailure(err)
		return nil, err
	}
	entries, err := r.files.List(dir)
	if err != nil {
		r.countFailure(err)
		return nil, err
	}
	return entries, nil
}

// Upload stores content under the sanitized form of filename, creating the category when it
// does not exist yet. An existing file of the same name is replaced. The returned FileInfo
// carries the name actually used.
func (r *Repository) Upload(ctx context.Context, dept, category, filename string, content io.Reader) (FileInfo, error) {
	p, err := r.require(ctx)
	if err != nil {
		return FileInfo{}, err
	}
	dir, err := r.resolver.Category(dept, category)
	if err != nil {
		r.countFailure(err)
		return FileInfo{}, err
	}
	name, err := pathsafe.SanitizeFilename(filename)
	if err != nil {
		r.countFailure(err)
		return FileInfo{}, err
	}

	entry, err := r.files.Save(dir, name, content)
	if err != nil {
		r.countFailure(err)
		return FileInfo{}, err
	}
	r.browser.Invalidate(dept)

	r.metricInc(MetricUploadSuccess)
	r.logger.Info("file uploaded",
		"username", p.Username,
		"department", dept,
		"category", category,
		"file", entry.Name,
		"size", entry.Size,
	)
	return entry, nil
}

// Delete removes one file. A missing file is ErrNotFound and changes nothing.
func (r *Repository) Delete(ctx context.Context, dept, category, filename string) error {
	p, err := r.require(ctx)
	if err != nil {
		return err
	}
	if _, err := r.resolver.File(dept, category, filename); err != nil {
		r.countFailure(err)
		return err
	}
	dir, err := r.resolver.Category(dept, category)
	if err != nil {
		r.countFailure(err)
		return err
	}

	if err := r.files.Delete(dir, filename); err != nil {
		r.countFailure(err)
		return err
	}

	r.metricInc(MetricDeleteSuccess)
	r.logger.Info("file deleted",
		"username", p.Username,
		"department", dept,
		"category", category,
		"file", filename,
	)
	return nil
}

// Download opens one file for transfer. The caller must close Download.Content.
func (r *Repository) Download(ctx context.Context, dept, category, filename string) (*Download, error) {
	if _, err := r.require(ctx); err != nil {
		return nil, err
	}
	if _, err := r.resolver.File(dept, category, filename); err != nil {
		r.countFailure(err)
		return nil, err
	}
	dir, err := r.resolver.Category(dept, category)
	if err != nil {
		r.countFailure(err)
		return nil, err
	}

	obj, err := r.files.Open(dir, filename)
	if err != nil {
		r.countFailure(err)
		return nil, err
	}

	r.metricInc(MetricDownloadSuccess)
	return obj, nil
}

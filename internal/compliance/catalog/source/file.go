package source

import (
	"context"
	"os"

	"docbridge/internal/compliance/models"
	dErrors "docbridge/pkg/domain-errors"
)

// FileSource reads records from a local JSON or YAML file.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Fetch(ctx context.Context) ([]models.JurisdictionRequirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "read requirements file")
	}
	return Decode(data, FormatFor(s.path))
}

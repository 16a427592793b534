// Package gdrive stores submission photos in a Google Drive folder.
package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"relief-bot/api/internal/commit"
)

type Store struct {
	svc      *drive.Service
	folderID string
}

// New builds a Drive client. Pass option.WithCredentialsJSON for a service
// account; tests pass option.WithEndpoint and option.WithHTTPClient.
func New(ctx context.Context, folderID string, opts ...option.ClientOption) (*Store, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, errors.New("gdrive: folder id is empty")
	}
	opts = append([]option.ClientOption{option.WithScopes(drive.DriveFileScope)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: new service: %w", err)
	}
	return &Store{svc: svc, folderID: folderID}, nil
}

func (s *Store) Upload(ctx context.Context, payload []byte, key, mime string) (commit.Reference, error) {
	f, err := s.svc.Files.Create(&drive.File{
		Name:     key,
		Parents:  []string{s.folderID},
		MimeType: mime,
	}).
		Media(bytes.NewReader(payload), googleapi.ContentType(mime)).
		SupportsAllDrives(true).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return commit.Reference{}, fmt.Errorf("gdrive: create %s: %w", key, err)
	}
	return commit.Reference{ID: f.Id, URL: viewURL(f)}, nil
}

func viewURL(f *drive.File) string {
	if f.WebViewLink != "" {
		return f.WebViewLink
	}
	return "https://drive.google.com/file/d/" + f.Id + "/view"
}

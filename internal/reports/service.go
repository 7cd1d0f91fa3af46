package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTTL is how long a shared exam link stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// Repo is the token persistence the service needs.
type Repo interface {
	Create(ctx context.Context, token, userID, title, filePath string, expires time.Time) error
	GetByToken(ctx context.Context, token string) (string, time.Time, error)
	FilesForUser(ctx context.Context, userID string) ([]string, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

// Published describes a stored PDF and its share link.
type Published struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service renders exam PDFs into dir and hands out expiring share tokens.
type Service struct {
	repo    Repo
	dir     string
	baseURL string
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// NewService stores files under exportDir/reports.
func NewService(repo Repo, exportDir, baseURL string, log *zap.Logger) (*Service, error) {
	dir, err := filepath.Abs(filepath.Join(exportDir, "reports"))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create reports dir: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     DefaultTTL,
		log:     log,
		now:     time.Now,
	}, nil
}

// Publish renders exam, writes it to disk and records a share token.
func (s *Service) Publish(ctx context.Context, userID string, exam Exam, withAnswers bool) (Published, error) {
	now := s.now()
	data, err := RenderExam(exam, withAnswers, now)
	if err != nil {
		return Published{}, err
	}

	token, err := newToken(24)
	if err != nil {
		return Published{}, err
	}
	path := filepath.Join(s.dir, token+".pdf")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return Published{}, fmt.Errorf("write pdf: %w", err)
	}

	expires := now.Add(s.ttl).UTC()
	if err := s.repo.Create(ctx, token, userID, exam.Title, path, expires); err != nil {
		_ = os.Remove(path)
		return Published{}, fmt.Errorf("store token: %w", err)
	}
	return Published{Token: token, URL: s.baseURL + "/r/" + token, ExpiresAt: expires}, nil
}

// Open resolves a token to a file path inside the reports dir.
func (s *Service) Open(ctx context.Context, token string) (string, error) {
	path, exp, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return "", err
	}
	if !s.now().Before(exp) || !s.contains(path) {
		return "", ErrNotFound
	}
	return filepath.Clean(path), nil
}

func (s *Service) contains(path string) bool {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}

func (s *Service) FilesForUser(ctx context.Context, userID string) ([]string, error) {
	return s.repo.FilesForUser(ctx, userID)
}

// RemoveFiles deletes the given PDFs, ignoring paths outside the reports dir.
func (s *Service) RemoveFiles(paths []string) {
	for _, p := range paths {
		if !s.contains(p) {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.Warn("remove report file failed", zap.String("path", p), zap.Error(err))
		}
	}
}

// PurgeExpired drops expired tokens and their files, returning how many were removed.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	paths, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.RemoveFiles(paths)
	return len(paths), nil
}

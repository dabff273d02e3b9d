package pipeline

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/hackstage/hackstage-api/internal/models"
	"github.com/hackstage/hackstage-api/internal/repository"
	"github.com/hackstage/hackstage-api/pkg/github"
)

// Directories that never contain reviewable source.
var skippedDirs = map[string]struct{}{
	"node_modules":     {},
	"vendor":           {},
	"dist":             {},
	"build":            {},
	"target":           {},
	"out":              {},
	"coverage":         {},
	"__pycache__":      {},
	"venv":             {},
	"bower_components": {},
}

// Extensions considered text or source and worth indexing.
var allowedExtensions = map[string]struct{}{
	".go": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".mjs": {},
	".py": {}, ".rb": {}, ".rs": {}, ".java": {}, ".kt": {}, ".swift": {},
	".c": {}, ".h": {}, ".cpp": {}, ".hpp": {}, ".cc": {}, ".cs": {},
	".php": {}, ".scala": {}, ".ex": {}, ".exs": {}, ".lua": {}, ".zig": {},
	".md": {}, ".txt": {}, ".rst": {},
	".json": {}, ".yaml": {}, ".yml": {}, ".toml": {}, ".xml": {}, ".ini": {}, ".env": {},
	".html": {}, ".css": {}, ".scss": {}, ".less": {}, ".vue": {}, ".svelte": {},
	".sql": {}, ".graphql": {}, ".proto": {}, ".sh": {}, ".bash": {}, ".ps1": {},
	".dockerfile": {}, ".tf": {}, ".prisma": {},
}

// RepoPrefix is the object-store prefix holding a submission's source files.
func RepoPrefix(submissionID string) string {
	return fmt.Sprintf("repos/%s/files/", submissionID)
}

// ScreenshotPrefix is the object-store prefix holding a submission's screenshots.
func ScreenshotPrefix(submissionID string) string {
	return fmt.Sprintf("screenshots/%s/", submissionID)
}

// ingest resolves the submission's repository, downloads an archive, uploads
// the filtered contents to the object store, and records the resulting key
// prefix. The scoped temporary directory is removed on every exit path.
func (p *Processor) ingest(ctx context.Context, submission models.Submission) error {
	if p.store == nil {
		return &ConfigError{Reason: "object store credentials are not configured"}
	}

	owner, repo, err := github.ParseRepoURL(submission.RepoURL)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSubmissionNotFound, err.Error())
	}

	started := p.now()
	downloading := models.ProcessingStateDownloading
	if err := p.submissions.UpdateSource(ctx, submission.ID, repository.SourcePatch{
		ProcessingState: &downloading,
		UploadStartedAt: &started,
	}); err != nil {
		return err
	}

	defaultBranch, err := p.provider.DefaultBranch(ctx, owner, repo)
	if err != nil && !errors.Is(err, github.ErrRepoNotFound) {
		p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("default branch lookup failed, using fixed candidates")
	}

	// Cache the README first so the UI has content while indexing runs.
	p.fetchReadme(ctx, submission)

	archive, err := p.provider.DownloadArchive(ctx, owner, repo, github.BranchCandidates(defaultBranch))
	if err != nil {
		if errors.Is(err, github.ErrNoDownloadableBranch) || errors.Is(err, github.ErrRepoNotFound) {
			return fmt.Errorf("%w: no downloadable branch for %s/%s", ErrSubmissionNotFound, owner, repo)
		}
		return fmt.Errorf("download archive: %w", err)
	}
	defer archive.Body.Close()

	workspace, err := os.MkdirTemp("", "submission-")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	zipPath := filepath.Join(workspace, "archive.zip")
	if err := writeToFile(zipPath, archive.Body); err != nil {
		return fmt.Errorf("store archive: %w", err)
	}

	extracted := filepath.Join(workspace, "extracted")
	if err := extractArchive(zipPath, extracted); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}

	uploading := models.ProcessingStateUploading
	if err := p.submissions.UpdateSource(ctx, submission.ID, repository.SourcePatch{
		ProcessingState: &uploading,
	}); err != nil {
		return err
	}

	prefix := RepoPrefix(submission.ID)
	uploaded, err := p.uploadTree(ctx, submission.ID, extracted, prefix)
	if err != nil {
		return fmt.Errorf("upload files: %w", err)
	}

	uploadedFiles.Observe(float64(uploaded))
	p.logger.Info().
		Str("submission_id", submission.ID).
		Str("branch", archive.Branch).
		Int("files", uploaded).
		Msg("repository uploaded to object store")

	now := p.now()
	indexing := models.ProcessingStateIndexing
	patch := repository.SourcePatch{
		R2Key:                 &prefix,
		UploadedAt:            &now,
		UploadCompletedAt:     &now,
		AISearchSyncStartedAt: &now,
		ProcessingState:       &indexing,
	}

	// Kick the index service so it picks up the new objects without waiting
	// for its own scan interval. The job id makes the later indexing checks
	// authoritative; without it they fall back to document probes.
	if p.search != nil {
		jobID, err := p.search.TriggerSync(ctx)
		switch {
		case err != nil:
			p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("index sync trigger failed, relying on document probes")
		case jobID != "":
			patch.AISearchSyncJobID = &jobID
		}
	}

	return p.submissions.UpdateSource(ctx, submission.ID, patch)
}

// uploadTree walks the extracted tree and uploads every kept file under the
// prefix, tagging each object with the submission id and original path.
func (p *Processor) uploadTree(ctx context.Context, submissionID, root, prefix string) (int, error) {
	uploaded := 0
	err := filepath.WalkDir(root, func(fullPath string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			if skipDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, fullPath)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !keepFile(relPath, info.Size(), p.policy.MaxFileBytes) {
			return nil
		}

		file, err := os.Open(fullPath)
		if err != nil {
			return err
		}
		defer file.Close()

		contentType := detectContentType(fullPath)
		key := prefix + relPath
		if err := p.store.Put(ctx, key, file, info.Size(), contentType, map[string]string{
			"submission-id": submissionID,
			"original-path": relPath,
		}); err != nil {
			return err
		}

		uploaded++
		return nil
	})
	if err != nil {
		return uploaded, err
	}

	return uploaded, nil
}

func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	_, skipped := skippedDirs[name]
	return skipped
}

func keepFile(relPath string, size, maxBytes int64) bool {
	if size <= 0 || size > maxBytes {
		return false
	}

	base := path.Base(relPath)
	if strings.HasPrefix(base, ".") && !strings.EqualFold(base, ".env") {
		return false
	}
	if strings.EqualFold(base, "Dockerfile") || strings.EqualFold(base, "Makefile") {
		return true
	}

	ext := strings.ToLower(path.Ext(base))
	_, allowed := allowedExtensions[ext]
	return allowed
}

func detectContentType(fullPath string) string {
	detected, err := mimetype.DetectFile(fullPath)
	if err != nil {
		return "application/octet-stream"
	}
	return detected.String()
}

func writeToFile(destination string, reader io.Reader) error {
	file, err := os.Create(destination)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, reader)
	return err
}

// extractArchive unpacks the zip into destination, stripping the archive's
// top-level "repo-branch/" directory so relative paths match the repository
// layout. Entries that would escape the destination are rejected.
func extractArchive(zipPath, destination string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(destination, 0o755); err != nil {
		return err
	}

	for _, entry := range reader.File {
		relPath := stripArchiveRoot(entry.Name)
		if relPath == "" {
			continue
		}

		target := filepath.Join(destination, filepath.FromSlash(relPath))
		if !strings.HasPrefix(target, filepath.Clean(destination)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes extraction directory", entry.Name)
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		source, err := entry.Open()
		if err != nil {
			return err
		}
		if err := writeToFile(target, source); err != nil {
			source.Close()
			return err
		}
		source.Close()
	}

	return nil
}

// stripArchiveRoot drops the single top-level directory GitHub adds to
// archive downloads.
func stripArchiveRoot(name string) string {
	name = strings.TrimPrefix(path.Clean(name), "/")
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return ""
}

// fetchReadme caches the repository README for the early summary shown while
// the pipeline runs. Failures are logged and ignored; the README is a
// nicety, not a stage.
func (p *Processor) fetchReadme(ctx context.Context, submission models.Submission) {
	owner, repo, err := github.ParseRepoURL(submission.RepoURL)
	if err != nil {
		return
	}

	content, filename, err := p.provider.FetchReadme(ctx, owner, repo)
	if err != nil {
		p.logger.Debug().Err(err).Str("submission_id", submission.ID).Msg("readme fetch failed")
		return
	}

	now := p.now()
	if err := p.submissions.UpdateSource(ctx, submission.ID, repository.SourcePatch{
		Readme:          &content,
		ReadmeFilename:  &filename,
		ReadmeFetchedAt: &now,
	}); err != nil {
		p.logger.Warn().Err(err).Str("submission_id", submission.ID).Msg("failed to store readme")
	}
}

package service

import (
	"context"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/hackstage/hackstage-api/internal/dto"
	"github.com/hackstage/hackstage-api/pkg/screenshot"
)

type capturerStub struct {
	pages []screenshot.CapturedPage
	err   error
	urls  []string
}

func (s *capturerStub) Capture(_ context.Context, siteURL string, _ bool) ([]screenshot.CapturedPage, error) {
	s.urls = append(s.urls, siteURL)
	return s.pages, s.err
}

type screenshotStoreStub struct {
	keys    []string
	deleted []string
}

func (s *screenshotStoreStub) Put(_ context.Context, key string, _ io.Reader, _ int64, _ string, _ map[string]string) error {
	s.keys = append(s.keys, key)
	return nil
}

func (s *screenshotStoreStub) Delete(_ context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *screenshotStoreStub) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func TestScreenshotCaptureStoresPages(t *testing.T) {
	submission := entry("sub-1", 1, "Trail Finder")
	submission.SiteURL = "https://trail-finder.example.com"
	submissions := newSubmissionRepoStub(submission)

	capturer := &capturerStub{pages: []screenshot.CapturedPage{
		{PageURL: "https://trail-finder.example.com/", PageName: "Home", PNG: []byte{1, 2, 3}},
		{PageURL: "https://trail-finder.example.com/about", PageName: "About", PNG: []byte{4, 5}},
	}}
	store := &screenshotStoreStub{}

	svc := NewScreenshotService(submissions, capturer, store, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	shots, err := svc.Capture(context.Background(), "sub-1", dto.ScreenshotCaptureRequest{FullPage: true})
	require.NoError(t, err)
	require.Len(t, shots, 2)
	require.Len(t, store.keys, 2)
	require.Contains(t, store.keys[0], "screenshots/sub-1/")
	require.Equal(t, []string{"https://trail-finder.example.com"}, capturer.urls)
	require.Contains(t, shots[0].URL, "https://cdn.example.com/")
}

func TestScreenshotCaptureRequiresSiteURL(t *testing.T) {
	submissions := newSubmissionRepoStub(entry("sub-1", 1, "Trail Finder"))

	svc := NewScreenshotService(submissions, &capturerStub{}, &screenshotStoreStub{}, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	_, err := svc.Capture(context.Background(), "sub-1", dto.ScreenshotCaptureRequest{})
	require.ErrorIs(t, err, ErrNoSiteURL)
}

func TestScreenshotDeleteRemovesObject(t *testing.T) {
	submissions := newSubmissionRepoStub(entry("sub-1", 1, "Trail Finder"))
	capturer := &capturerStub{pages: []screenshot.CapturedPage{
		{PageURL: "https://trail-finder.example.com/", PNG: []byte{1}},
	}}
	store := &screenshotStoreStub{}

	svc := NewScreenshotService(submissions, capturer, store, validator.New(validator.WithRequiredStructEnabled()), testLogger())

	submission := entry("sub-1", 1, "Trail Finder")
	submission.SiteURL = "https://trail-finder.example.com"
	submissions.items["sub-1"] = submission

	shots, err := svc.Capture(context.Background(), "sub-1", dto.ScreenshotCaptureRequest{})
	require.NoError(t, err)
	require.Len(t, shots, 1)

	require.NoError(t, svc.Delete(context.Background(), shots[0].ID))
	require.Equal(t, store.keys, store.deleted)

	require.ErrorIs(t, svc.Delete(context.Background(), 999), ErrScreenshotNotFound)
}

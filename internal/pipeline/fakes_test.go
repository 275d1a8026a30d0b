package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/prober"
	"github.com/vidshare/backend/internal/transcoder"
)

type memStore struct {
	mu        sync.Mutex
	videos    map[string]*models.Video
	updates   []models.Patch
	gets      int
	getErr    error
	updateErr error
}

func newMemStore(videos ...*models.Video) *memStore {
	s := &memStore{videos: map[string]*models.Video{}}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *memStore) Get(_ context.Context, id string) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.videos[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *v
	cp.Files = models.Files{}
	for k, u := range v.Files {
		cp.Files[k] = u
	}
	return &cp, nil
}

func (s *memStore) Update(_ context.Context, id string, p models.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	v, ok := s.videos[id]
	if !ok {
		return models.ErrNotFound
	}
	s.updates = append(s.updates, p)
	v.Apply(p)
	return nil
}

func (s *memStore) status(id string) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videos[id].Status
}

type fakeObjects struct {
	mu        sync.Mutex
	deleted   []string
	presigned []time.Duration
	deleteErr error
}

func (f *fakeObjects) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presigned = append(f.presigned, ttl)
	return "https://ingest.example/" + key + "?sig=1", nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

type fakeProber struct {
	meta prober.Metadata
	err  error
	urls []string
}

func (f *fakeProber) Probe(_ context.Context, url string) (prober.Metadata, error) {
	f.urls = append(f.urls, url)
	return f.meta, f.err
}

type fakeSubmitter struct {
	jobs []transcoder.Job
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, job transcoder.Job) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "job-" + job.VideoID, nil
}

type fakeIndexer struct {
	docs []models.SearchDocument
	err  error
}

func (f *fakeIndexer) Upsert(_ context.Context, doc models.SearchDocument) error {
	f.docs = append(f.docs, doc)
	return f.err
}

type published struct {
	id     string
	status models.Status
}

type fakeNotifier struct {
	sent []published
}

func (f *fakeNotifier) Publish(_ context.Context, id string, status models.Status) error {
	f.sent = append(f.sent, published{id, status})
	return errors.New("redis down")
}

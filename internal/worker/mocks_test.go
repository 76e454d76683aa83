package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docingest/features/job"
	"docingest/internal/document"
)

type MockIngester struct{ mock.Mock }

func (m *MockIngester) Upload(ctx context.Context, file document.File, cfg document.ProcessingConfig) document.Stats {
	args := m.Called(ctx, file, cfg)
	return args.Get(0).(document.Stats)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}

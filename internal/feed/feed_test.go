package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects map[string]map[string]string
	times   map[string]time.Time
	headErr error
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		out.Contents = append(out.Contents, s3types.Object{Key: lo.ToPtr(key)})
	}
	out.Contents = append(out.Contents, s3types.Object{Key: lo.ToPtr(lo.FromPtr(in.Prefix) + "index.json")})
	return out, nil
}

func (f *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	key := lo.FromPtr(in.Key)
	return &s3.HeadObjectOutput{
		Metadata:     f.objects[key],
		LastModified: lo.ToPtr(f.times[key]),
	}, nil
}

func TestGenerateNewestFirst(t *testing.T) {
	older := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)
	bucket := &fakeBucket{
		objects: map[string]map[string]string{
			"images/CR-Flux/aaaa.jpg":  {"prompt": "red%20fox", "model": "CR-Flux", "seed": "7"},
			"images/CR-Turbo/bbbb.jpg": {"prompt": "blue%20sky", "model": "CR-Turbo", "seed": "8"},
		},
		times: map[string]time.Time{
			"images/CR-Flux/aaaa.jpg":  older,
			"images/CR-Turbo/bbbb.jpg": newer,
		},
	}

	rss, err := NewGenerator(bucket, "archive", "https://cdn.example.com/").Generate(context.Background())
	require.NoError(t, err)

	out := string(rss)
	assert.Contains(t, out, "<title>CR-Image Archive</title>")
	assert.Contains(t, out, "blue sky:CR-Turbo:8")
	assert.Contains(t, out, "red fox:CR-Flux:7")
	assert.Contains(t, out, "https://cdn.example.com/images/CR-Flux/aaaa.jpg")
	assert.NotContains(t, out, "index.json")
	assert.Less(t, strings.Index(out, "blue sky"), strings.Index(out, "red fox"))
}

func TestGenerateHeadError(t *testing.T) {
	bucket := &fakeBucket{
		objects: map[string]map[string]string{"images/CR-Flux/aaaa.jpg": {}},
		headErr: errors.New("forbidden"),
	}
	_, err := NewGenerator(bucket, "archive", "https://cdn.example.com").Generate(context.Background())
	assert.ErrorContains(t, err, "forbidden")
}


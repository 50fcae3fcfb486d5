package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Lister is the subset of the S3 client the feed needs.
type Lister interface {
	s3.ListObjectsV2APIClient
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type Generator struct {
	client  Lister
	bucket  string
	baseURL string
}

func NewGenerator(client Lister, bucket, baseURL string) *Generator {
	return &Generator{client: client, bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func NewS3Generator(i *do.Injector) (*Generator, error) {
	return NewGenerator(
		do.MustInvoke[*s3.Client](i),
		do.MustInvokeNamed[string](i, "archive_bucket"),
		do.MustInvokeNamed[string](i, "archive_base_url"),
	), nil
}

// Generate renders an RSS feed of every archived image, newest first.
func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")
	log.Info("generating rss feed", "bucket", g.bucket)

	feed := feeds.Feed{
		Title:       "CR-Image Archive",
		Description: "Images generated through CR-Image-API",
		Link:        &feeds.Link{Href: g.baseURL},
		Updated:     time.Now(),
	}

	pager := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: &g.bucket,
		Prefix: lo.ToPtr(store.ImagePrefix),
	})

	var mu sync.Mutex
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for pager.HasMorePages() {
		page, err := pager.NextPage(gctx)
		if err != nil {
			_ = group.Wait()
			return nil, err
		}

		objs := lo.Filter(page.Contents, func(o s3types.Object, _ int) bool {
			return strings.HasSuffix(lo.FromPtr(o.Key), ".jpg")
		})

		for _, obj := range objs {
			obj := obj
			group.Go(func() error {
				out, err := g.client.HeadObject(gctx, &s3.HeadObjectInput{
					Bucket: &g.bucket,
					Key:    obj.Key,
				})
				if err != nil {
					return err
				}

				item := g.item(lo.FromPtr(obj.Key), out)
				mu.Lock()
				feed.Add(item)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}

func (g *Generator) item(key string, out *s3.HeadObjectOutput) *feeds.Item {
	meta := out.Metadata
	prompt, err := url.PathUnescape(meta["prompt"])
	if err != nil {
		prompt = meta["prompt"]
	}
	return &feeds.Item{
		Id:      key,
		Title:   fmt.Sprintf("%s:%s:%s", prompt, meta["model"], meta["seed"]),
		Link:    &feeds.Link{Href: g.baseURL + "/" + key},
		Updated: lo.FromPtr(out.LastModified),
	}
}

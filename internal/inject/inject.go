package inject

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/crimage/internal/config"
	"github.com/dmorgan81/crimage/internal/feed"
	"github.com/dmorgan81/crimage/internal/handler"
	"github.com/dmorgan81/crimage/internal/health"
	"github.com/dmorgan81/crimage/internal/image"
	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/model"
	"github.com/dmorgan81/crimage/internal/page"
	"github.com/dmorgan81/crimage/internal/param"
	"github.com/dmorgan81/crimage/internal/prompt"
	"github.com/dmorgan81/crimage/internal/server"
	"github.com/dmorgan81/crimage/internal/store"
	"github.com/dmorgan81/crimage/internal/urlcache"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// Setup registers every service lazily; AWS clients are only built when an
// SSM override or the archive asks for them.
func Setup(ctx context.Context, cfg config.Config) *do.Injector {
	logger := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue[*slog.Logger](injector, logger)
	do.ProvideValue[config.Config](injector, cfg)

	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)

	do.Provide[*model.Registry](injector, func(i *do.Injector) (*model.Registry, error) {
		return loadRegistry(ctx, i, cfg.ModelsParam)
	})
	do.Provide[*prompt.Filter](injector, func(i *do.Injector) (*prompt.Filter, error) {
		if cfg.DenylistParam == "" {
			return prompt.NewFilter(prompt.DefaultDenylist), nil
		}
		value, err := do.MustInvoke[param.Fetcher](i).Fetch(ctx, cfg.DenylistParam)
		if err != nil {
			return nil, fmt.Errorf("loading denylist: %w", err)
		}
		return prompt.NewFilter(param.SplitList(value)), nil
	})
	do.Provide[handler.Settings](injector, func(i *do.Injector) (handler.Settings, error) {
		return handler.Settings{
			Registry: do.MustInvoke[*model.Registry](i),
			Filter:   do.MustInvoke[*prompt.Filter](i),
		}, nil
	})

	do.Provide[*urlcache.Builder](injector, func(i *do.Injector) (*urlcache.Builder, error) {
		return urlcache.NewBuilder(do.MustInvoke[*model.Registry](i), cfg.CacheSize)
	})
	do.Provide[handler.URLBuilder](injector, func(i *do.Injector) (handler.URLBuilder, error) {
		return do.MustInvoke[*urlcache.Builder](i), nil
	})
	do.Provide[image.Fetcher](injector, func(i *do.Injector) (image.Fetcher, error) {
		return image.NewHTTPFetcher(cfg.FetchTimeout), nil
	})

	do.ProvideNamedValue[string](injector, "archive_bucket", cfg.ArchiveBucket)
	do.ProvideNamedValue[string](injector, "archive_distribution", cfg.ArchiveDistribution)
	do.ProvideNamedValue[string](injector, "archive_base_url", cfg.ArchiveBaseURL)
	do.Provide[store.Uploader](injector, store.NewS3Uploader)
	do.Provide[store.Invalidator](injector, func(i *do.Injector) (store.Invalidator, error) {
		if cfg.ArchiveDistribution == "" {
			return store.NopInvalidator{}, nil
		}
		return store.NewCloudFrontInvalidator(i)
	})
	do.Provide[store.Archiver](injector, func(i *do.Injector) (store.Archiver, error) {
		if !cfg.ArchiveEnabled() {
			return store.Discard{}, nil
		}
		return store.NewArchiver(i)
	})
	do.Provide[*feed.Generator](injector, feed.NewS3Generator)

	do.Provide[*health.Reporter](injector, func(i *do.Injector) (*health.Reporter, error) {
		mode := lo.Ternary(cfg.Lambda, health.ModeServerless, health.ModeServer)
		return health.NewReporter(mode, health.Host{}, do.MustInvoke[*urlcache.Builder](i)), nil
	})
	do.ProvideValue[*page.Templator](injector, &page.Templator{})
	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*server.Server](injector, server.NewServer)

	return injector
}

func loadRegistry(ctx context.Context, i *do.Injector, path string) (*model.Registry, error) {
	if path == "" {
		return model.NewRegistry(model.Builtin, model.DefaultName)
	}

	lines, err := do.MustInvoke[param.Fetcher](i).FetchAll(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading models: %w", err)
	}
	entries, err := model.ParseEntries(lines)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no models under %s", path)
	}

	def := lo.Ternary(lo.ContainsBy(entries, func(e model.Entry) bool {
		return e.Name == model.DefaultName
	}), model.DefaultName, entries[0].Name)
	return model.NewRegistry(entries, def)
}

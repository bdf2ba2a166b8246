package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/assetgc-io/assetgc/internal/bootstrap"
	"github.com/assetgc-io/assetgc/internal/config"
	"github.com/assetgc-io/assetgc/internal/gc"
	"github.com/assetgc-io/assetgc/internal/logging"
	"github.com/assetgc-io/assetgc/internal/metrics"
	s3store "github.com/assetgc-io/assetgc/internal/objectstore/s3"
	ecrstore "github.com/assetgc-io/assetgc/internal/registry/ecr"
	"github.com/assetgc-io/assetgc/internal/roots"
)

// runFlags are the command-line overrides applied on top of the config
// file and environment.
type runFlags struct {
	action         string
	target         string
	rollbackBuffer int
	createdBuffer  int
	noConfirm      bool
	bootstrapStack string
	region         string
}

func runCollect(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fl := runFlags{rollbackBuffer: -1, createdBuffer: -1}
	fs.StringVar(&fl.action, "action", "", "Override action: print, tag, delete-tagged or full")
	fs.StringVar(&fl.target, "target", "", "Override target: s3, ecr or all")
	fs.IntVar(&fl.rollbackBuffer, "rollback-buffer-days", -1, "Override the isolation grace period in days")
	fs.IntVar(&fl.createdBuffer, "created-buffer-days", -1, "Override the minimum asset age in days")
	fs.BoolVar(&fl.noConfirm, "no-confirm", false, "Skip deletion confirmation prompts")
	fs.StringVar(&fl.bootstrapStack, "bootstrap-stack", "", "Override the bootstrap stack name")
	fs.StringVar(&fl.region, "region", "", "Override the AWS region")

	fs.Usage = func() {
		fmt.Println(`Usage: assetgc run [options]

Runs one mark-and-sweep pass: deployed stack templates form the root set,
and unreferenced assets in the bootstrap bucket and repository are
isolated, then deleted once the rollback buffer elapses.

Options:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assetgc: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, fl)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "assetgc: %v\n", err)
		os.Exit(1)
	}

	log := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := collect(ctx, cfg, log); err != nil {
		if errors.Is(err, gc.ErrAborted) {
			fmt.Fprintln(os.Stderr, "assetgc: aborted")
			os.Exit(1)
		}
		log.Errorf("collection failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

// applyFlags layers explicit command-line overrides onto the loaded
// configuration.
func applyFlags(cfg *config.Config, fl runFlags) {
	if fl.action != "" {
		cfg.GC.Action = fl.action
	}
	if fl.target != "" {
		cfg.GC.Target = fl.target
	}
	if fl.rollbackBuffer >= 0 {
		cfg.GC.RollbackBufferDays = fl.rollbackBuffer
	}
	if fl.createdBuffer >= 0 {
		cfg.GC.CreatedBufferDays = fl.createdBuffer
	}
	if fl.noConfirm {
		cfg.GC.Confirm = false
	}
	if fl.bootstrapStack != "" {
		cfg.GC.BootstrapStackName = fl.bootstrapStack
	}
	if fl.region != "" {
		cfg.AWS.Region = fl.region
	}
}

func collect(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	cfnClient := cloudformation.NewFromConfig(awsCfg, func(o *cloudformation.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
		o.UsePathStyle = cfg.AWS.UsePathStyle
	})
	ecrClient := ecr.NewFromConfig(awsCfg, func(o *ecr.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})

	// An unresolvable bootstrap stack means there is nothing safe to
	// sweep.
	info, err := bootstrap.Resolve(ctx, cfnClient, cfg.GC.BootstrapStackName)
	if err != nil {
		return fmt.Errorf("resolve bootstrap stack %q: %w", cfg.GC.BootstrapStackName, err)
	}
	log.Infof("bootstrap stack resolved", map[string]any{
		"stack":      cfg.GC.BootstrapStackName,
		"bucket":     info.BucketName,
		"repository": info.RepositoryName,
		"qualifier":  info.Qualifier,
	})

	var gcMetrics *metrics.GCMetrics
	if cfg.Observability.MetricsAddr != "" {
		gcMetrics = metrics.NewGCMetrics()
		srv := metrics.NewServer(cfg.Observability.MetricsAddr)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer srv.Close()
		log.Infof("metrics server started", map[string]any{"addr": srv.Addr()})
	}

	cache := roots.NewCache()
	scanner := roots.NewScanner(cfnClient, log)
	refresher := roots.NewRefresher(cache, scanner.Scan, roots.RefresherConfig{
		Interval: time.Duration(cfg.GC.RefreshIntervalMs) * time.Millisecond,
	}, log)

	collector := gc.NewCollector(gc.Options{
		Action:             cfg.GC.Action,
		Target:             cfg.GC.Target,
		RollbackBufferDays: cfg.GC.RollbackBufferDays,
		CreatedBufferDays:  cfg.GC.CreatedBufferDays,
		Confirm:            cfg.GC.Confirm,
		BatchSize:          cfg.GC.BatchSize,
		Concurrency:        cfg.GC.Concurrency,
		MaxRootAge:         time.Duration(cfg.GC.MaxRootAgeMs) * time.Millisecond,
	}, gc.Deps{
		Objects:   s3store.New(s3Client, info.BucketName),
		Images:    ecrstore.New(ecrClient, info.RepositoryName),
		Cache:     cache,
		Refresher: refresher,
		Progress:  gc.NewConsoleReporter(os.Stdout),
		Confirm:   &gc.ConsoleConfirmer{In: os.Stdin, Out: os.Stdout},
		Metrics:   gcMetrics,
		Logger:    log,
	})
	return collector.Run(ctx)
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

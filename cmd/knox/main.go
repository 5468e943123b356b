// Package main is the entry point for the knox object storage CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/staer/knox"
	"github.com/staer/knox/internal/config"
	"github.com/staer/knox/internal/logging"
	"github.com/staer/knox/knoxtypes"
)

const usage = `usage: knox [flags] <command> [args]

commands:
  put <file> [key]     upload a file (key defaults to the file's base name)
  get <key> [file]     download an object to a file or stdout
  head <key>           print object metadata
  del <key>            delete an object
  cp <src> <dst>       copy an object server-side
  url <key>            print a pre-signed URL for an object
`

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	bucket := flag.String("bucket", "", "override bucket (default: from config)")
	endpoint := flag.String("endpoint", "", "override service endpoint (default: from config)")
	port := flag.Int("port", 0, "override service port (default: from config)")
	insecure := flag.Bool("insecure", false, "use http instead of https")
	concurrency := flag.Int("concurrency", 0, "concurrent part uploads (default: from config or 5)")
	partSizeMB := flag.Int64("part-size-mb", 0, "preferred part size in MiB (default: service minimum)")
	expires := flag.Duration("expires", 15*time.Minute, "signed URL lifetime (url command)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *bucket != "" {
		cfg.Service.Bucket = *bucket
	}
	if *endpoint != "" {
		cfg.Service.Endpoint = *endpoint
	}
	if *port != 0 {
		cfg.Service.Port = *port
	}
	if *insecure {
		cfg.Service.Secure = false
	}
	if *concurrency != 0 {
		cfg.Transfer.Concurrency = *concurrency
	}
	if *partSizeMB != 0 {
		cfg.Transfer.PartSizeMB = *partSizeMB
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	clientOpts := []knoxtypes.Option{
		knox.WithCredentials(cfg.Credentials.AccessKey, cfg.Credentials.SecretKey),
		knox.WithBucket(cfg.Service.Bucket),
		knox.WithEndpoint(cfg.Service.Endpoint),
		knox.WithSecure(cfg.Service.Secure),
		knox.WithConcurrency(cfg.Transfer.Concurrency),
		knox.WithLogger(logger),
	}
	if cfg.Service.Port != 0 {
		clientOpts = append(clientOpts, knox.WithPort(cfg.Service.Port))
	}
	if cfg.Transfer.PartSizeMB > 0 {
		clientOpts = append(clientOpts, knox.WithPartSize(cfg.Transfer.PartSizeMB*1024*1024))
	}

	client, err := knox.New(clientOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(1)
	}

	// Cancel in-flight transfers on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, flag.Args(), *expires); err != nil {
		fmt.Fprintf(os.Stderr, "knox: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *knox.Client, args []string, expires time.Duration) error {
	cmd, args := args[0], args[1:]

	switch cmd {
	case "put":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: knox put <file> [key]")
		}
		path := args[0]
		key := filepath.Base(path)
		if len(args) == 2 {
			key = args[1]
		}
		result, err := client.PutFile(ctx, key, path)
		if err != nil {
			return err
		}
		mode := "single"
		if result.Multipart {
			mode = fmt.Sprintf("multipart/%d parts", result.Parts)
		}
		fmt.Printf("uploaded %s (%d bytes, %s, %s) etag=%s\n",
			result.Key, result.Size, mode, result.Duration.Round(time.Millisecond), result.ETag)
		return nil

	case "get":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: knox get <key> [file]")
		}
		reader, _, err := client.GetReader(ctx, args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		out := io.Writer(os.Stdout)
		if len(args) == 2 {
			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		_, err = io.Copy(out, reader)
		return err

	case "head":
		if len(args) != 1 {
			return fmt.Errorf("usage: knox head <key>")
		}
		meta, err := client.Head(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("key:           %s\n", args[0])
		fmt.Printf("content-type:  %s\n", meta.ContentType)
		fmt.Printf("size:          %d\n", meta.ContentLength)
		fmt.Printf("last-modified: %s\n", meta.LastModified.Format(time.RFC3339))
		fmt.Printf("etag:          %s\n", meta.ETag)
		return nil

	case "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: knox del <key>")
		}
		return client.Delete(ctx, args[0])

	case "cp":
		if len(args) != 2 {
			return fmt.Errorf("usage: knox cp <src> <dst>")
		}
		return client.Copy(ctx, args[0], args[1])

	case "url":
		if len(args) != 1 {
			return fmt.Errorf("usage: knox url <key>")
		}
		u, err := client.SignedURLFor(args[0], expires)
		if err != nil {
			return err
		}
		fmt.Println(u)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

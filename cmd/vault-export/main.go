// Command vault-export writes one owner's image vault metadata as JSON.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/EternisAI/image-vault/pkg/bootstrap"
	"github.com/EternisAI/image-vault/pkg/db"
	"github.com/EternisAI/image-vault/pkg/helpers"
	"github.com/EternisAI/image-vault/pkg/vault"
)

type options struct {
	Owner    string        `long:"owner" description:"Telegram user id whose items are exported" required:"true"`
	Out      string        `long:"out" description:"Output file, - for stdout" default:"-"`
	MongoURI string        `long:"mongo-uri" env:"MONGODB_URI" description:"MongoDB connection string"`
	Database string        `long:"database" env:"MONGODB_DATABASE" default:"image_vault" description:"MongoDB database"`
	Timeout  time.Duration `long:"timeout" default:"30s" description:"Overall export timeout"`
}

var errMissingURI = errors.New("a MongoDB URI is required (--mongo-uri or MONGODB_URI)")

func main() {
	_ = helpers.LoadEnvFile(3)
	logger := bootstrap.NewLogger()

	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("Export failed", "error", err)
	}
}

func parseOptions(args []string) (options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "Export image vault metadata"
	if _, err := parser.ParseArgs(args); err != nil {
		return opts, err
	}
	if opts.MongoURI == "" {
		return opts, errMissingURI
	}
	return opts, nil
}

func run(args []string, stdout io.Writer, logger *log.Logger) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	mongo := db.NewMongo(opts.MongoURI, opts.Database, logger)
	defer func() { _ = mongo.Close(context.Background()) }()

	// Export degrades to an empty list, so connect first to surface real failures.
	if _, err := mongo.Collections(ctx); err != nil {
		return err
	}
	items, err := vault.NewMongoStore(mongo, nil, logger).Export(ctx, opts.Owner)
	if err != nil {
		return err
	}

	if opts.Out == "-" {
		err = writeExport(stdout, items, time.Now())
	} else {
		err = writeExportFile(opts.Out, items, time.Now())
	}
	if err != nil {
		return err
	}
	logger.Info("Export written", "owner", opts.Owner, "count", len(items), "out", opts.Out)
	return nil
}

func writeExportFile(path string, items []vault.ExportItem, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	return writeAndClose(f, items, now)
}

// writeAndClose returns the close error when the write itself succeeded.
func writeAndClose(wc io.WriteCloser, items []vault.ExportItem, now time.Time) error {
	if err := writeExport(wc, items, now); err != nil {
		_ = wc.Close()
		return err
	}
	if err := wc.Close(); err != nil {
		return errors.Wrap(err, "failed to close output file")
	}
	return nil
}

func writeExport(w io.Writer, items []vault.ExportItem, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(vault.NewExportPayload(items, now)); err != nil {
		return errors.Wrap(err, "failed to encode export")
	}
	return nil
}

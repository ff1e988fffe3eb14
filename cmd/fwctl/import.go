package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Limmita2/FaseWatch/internal/identity"
	"github.com/Limmita2/FaseWatch/internal/jobs"
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/queue"
	"github.com/Limmita2/FaseWatch/internal/storage"
	"github.com/Limmita2/FaseWatch/internal/vision"
)

const importSender = "Local import"

var photoTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import a directory of photos",
	Long: `Import every JPEG and PNG below a directory as a message of one group. Each
photo is stored in MinIO, recorded as a message and then either resolved
in-process or queued for the workers.

Examples:
  # Resolve faces locally with 4 parallel jobs
  fwctl import ./export --group "Archive 2023"

  # Leave face resolution to the running workers
  fwctl import ./export --group "Archive 2023" --queue`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("group", "Local import", "group the messages belong to")
	importCmd.Flags().Int("concurrency", 4, "number of parallel photo jobs")
	importCmd.Flags().Bool("queue", false, "publish photo tasks to NATS instead of resolving faces in-process")
}

func runImport(cmd *cobra.Command, args []string) error {
	groupName, _ := cmd.Flags().GetString("group")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	useQueue, _ := cmd.Flags().GetBool("queue")
	ctx := cmd.Context()

	deps, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()
	cfg := deps.Config

	var dispatch func(context.Context, models.PhotoTask) error
	if useQueue {
		producer, err := queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to nats: %w", err)
		}
		defer producer.Close()
		if err := producer.EnsureStreams(ctx); err != nil {
			return err
		}
		dispatch = producer.PublishPhoto
	} else {
		if cfg.VectorIndex.Backend == "memory" {
			slog.Warn("memory vector index: resolved faces are matched within this run only")
		}
		if err := vision.InitRuntime(cfg.Vision.RuntimeLib); err != nil {
			return err
		}
		defer vision.DestroyRuntime()

		analyzer := deps.Analyzer(cfg.Vision.DetSize)
		defer analyzer.Close()
		if _, err := analyzer.Get(); err != nil {
			return err
		}

		processor := jobs.NewProcessor(deps.Blobs, analyzer, deps.Coordinator(), nil)
		policy := jobs.RetryPolicy{MaxAttempts: cfg.Jobs.MaxAttempts, Delay: cfg.Jobs.RetryDelay}
		dispatch = func(ctx context.Context, task models.PhotoTask) error {
			return policy.Run(ctx, func(ctx context.Context, attempt int) error {
				_, err := processor.Process(ctx, task)
				return err
			})
		}
	}

	imp := &importer{
		store:       deps.DB,
		blobs:       deps.Blobs,
		dispatch:    dispatch,
		concurrency: concurrency,
		out:         os.Stdout,
	}
	stats, err := imp.Run(ctx, args[0], groupName)
	if err != nil {
		return err
	}

	fmt.Printf("\nGroup:     %s\n", groupName)
	fmt.Printf("Messages:  %d\n", stats.Messages)
	fmt.Printf("Skipped:   %d (not decodable)\n", stats.Skipped)
	fmt.Printf("Failed:    %d\n", stats.Failed)
	return nil
}

type messageStore interface {
	EnsureGroup(ctx context.Context, name string) (*models.Group, error)
	CreateMessage(ctx context.Context, m *models.Message) error
}

type importStats struct {
	Messages int
	Skipped  int
	Failed   int
}

type importer struct {
	store       messageStore
	blobs       identity.BlobStore
	dispatch    func(context.Context, models.PhotoTask) error
	concurrency int
	out         io.Writer
}

// Run imports the photos below dir in name order. A photo whose message was
// created counts as imported even when dispatching it failed.
func (imp *importer) Run(ctx context.Context, dir, groupName string) (importStats, error) {
	var stats importStats

	files, err := listPhotos(dir)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		fmt.Fprintln(imp.out, "No photos found.")
		return stats, nil
	}

	group, err := imp.store.EnsureGroup(ctx, groupName)
	if err != nil {
		return stats, fmt.Errorf("ensure group %q: %w", groupName, err)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(imp.out),
		progressbar.OptionSetDescription("Importing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)

	concurrency := max(imp.concurrency, 1)
	sem := make(chan struct{}, concurrency)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			created, err := imp.importFile(ctx, group, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, identity.ErrUndecodable):
				stats.Skipped++
			case err != nil:
				stats.Failed++
				slog.Error("import photo", "path", path, "error", err)
			}
			if created {
				stats.Messages++
			}
			_ = bar.Add(1)
		}(path)
	}
	wg.Wait()
	_ = bar.Finish()

	return stats, ctx.Err()
}

func (imp *importer) importFile(ctx context.Context, group *models.Group, path string) (created bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if _, err := vision.DecodeImage(data); err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	ts := info.ModTime().UTC()
	sender := importSender
	msg := &models.Message{
		ID:                 uuid.New(),
		GroupID:            group.ID,
		SenderName:         &sender,
		HasPhoto:           true,
		Timestamp:          &ts,
		ImportedFromBackup: true,
	}
	key := storage.PhotoKey(group.ID, msg.ID, ts)
	msg.PhotoPath = &key

	if err := imp.blobs.Put(ctx, key, data, photoTypes[strings.ToLower(filepath.Ext(path))]); err != nil {
		return false, err
	}
	if err := imp.store.CreateMessage(ctx, msg); err != nil {
		if derr := imp.blobs.DeleteObjects(context.WithoutCancel(ctx), []string{key}); derr != nil {
			slog.Warn("remove orphaned import blob", "key", key, "error", derr)
		}
		return false, err
	}

	task := models.PhotoTask{MessageID: &msg.ID, GroupID: &group.ID, PhotoKey: key, Timestamp: ts}
	return true, imp.dispatch(ctx, task)
}

func listPhotos(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := photoTypes[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

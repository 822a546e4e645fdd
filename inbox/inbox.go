// Package inbox turns a directory into a drop folder: datasets copied into it
// are processed one at a time and then moved to done/ or to the error folder.
package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/xalq/am"
	"github.com/teranos/xalq/errors"
	"github.com/teranos/xalq/logger"
)

// DoneDirName is the subfolder of the drop folder that receives processed inputs
const DoneDirName = "done"

// Processor handles one dataset. A non-nil error sends the file to the error folder.
type Processor func(ctx context.Context, path string) error

// Config locates the drop folder
type Config struct {
	Dir      string
	DoneDir  string // default Dir/done
	ErrorDir string
	Debounce time.Duration // quiet period after the last write before a file is picked up
}

// Inbox watches Config.Dir and feeds new datasets to a Processor
type Inbox struct {
	cfg     Config
	process Processor
	logger  *zap.SugaredLogger
}

// New creates an inbox
func New(cfg Config, process Processor) (*Inbox, error) {
	if cfg.Dir == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "inbox directory is required")
	}
	if cfg.ErrorDir == "" {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "inbox error directory is required")
	}
	if cfg.DoneDir == "" {
		cfg.DoneDir = filepath.Join(cfg.Dir, DoneDirName)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Inbox{cfg: cfg, process: process, logger: logger.ComponentLogger("inbox")}, nil
}

// FromConfig uses paths.processing, paths.error and watch.debounce_ms
func FromConfig(cfg *am.EngineConfig, process Processor) (*Inbox, error) {
	return New(Config{
		Dir:      cfg.Paths.Processing,
		ErrorDir: cfg.Paths.Error,
		Debounce: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
	}, process)
}

// Accepts reports whether name looks like a dataset the inbox should take.
// Office lock files (~$x.xlsx) and hidden files are ignored.
func Accepts(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// Drain processes every dataset already in the folder, in name order, and
// returns how many it handled.
func (in *Inbox) Drain(ctx context.Context) (int, error) {
	if err := in.ensureDirs(); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(in.cfg.Dir)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", in.cfg.Dir)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && Accepts(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	n := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if in.handle(ctx, filepath.Join(in.cfg.Dir, name)) {
			n++
		}
	}
	return n, nil
}

// Run drains the folder, then processes new files until ctx is done
func (in *Inbox) Run(ctx context.Context) error {
	if err := in.ensureDirs(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(in.cfg.Dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", in.cfg.Dir)
	}
	in.logger.Infow("Watching drop folder", logger.FieldPath, in.cfg.Dir)

	if _, err := in.Drain(ctx); err != nil {
		return err
	}

	ready := make(chan string, 16)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			in.logger.Infow("Drop folder watcher stopped", logger.FieldPath, in.cfg.Dir)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			// Only direct children; done/ lives inside the folder
			if filepath.Dir(filepath.Clean(event.Name)) != filepath.Clean(in.cfg.Dir) || !Accepts(event.Name) {
				continue
			}

			name := event.Name
			if t, ok := pending[name]; ok {
				t.Stop()
			}
			pending[name] = time.AfterFunc(in.cfg.Debounce, func() {
				select {
				case ready <- name:
				case <-ctx.Done():
				}
			})

		case name := <-ready:
			delete(pending, name)
			in.handle(ctx, name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.logger.Warnw("Drop folder watcher error", logger.FieldError, err)
		}
	}
}

// handle processes one file and moves it. It returns false when the file
// was gone or processing was interrupted.
func (in *Inbox) handle(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}

	log := in.logger.With(logger.FieldFile, filepath.Base(path))
	log.Infow("Processing dropped dataset", logger.FieldSize, info.Size())

	started := time.Now()
	procErr := in.process(ctx, path)
	if ctx.Err() != nil {
		// Left in place so the next run picks it up
		log.Warnw("Processing interrupted", logger.FieldError, ctx.Err())
		return false
	}

	dest := in.cfg.DoneDir
	if procErr != nil {
		dest = in.cfg.ErrorDir
		log.Errorw("Dataset failed",
			logger.FieldErrorType, errors.Kind(procErr),
			logger.FieldError, procErr)
	}

	moved, err := moveInto(path, dest, time.Now())
	if err != nil {
		log.Errorw("Failed to move dataset", logger.FieldPath, dest, logger.FieldError, err)
		return true
	}
	log.Infow("Dataset moved",
		logger.FieldPath, moved,
		logger.FieldDurationMS, time.Since(started).Milliseconds())
	return true
}

func (in *Inbox) ensureDirs() error {
	for _, dir := range []string{in.cfg.Dir, in.cfg.DoneDir, in.cfg.ErrorDir} {
		if err := os.MkdirAll(dir, am.DefaultDirPermissions); err != nil {
			return errors.Wrapf(err, "failed to create %s", dir)
		}
	}
	return nil
}

// moveInto renames src into dir, adding a timestamp when the name is taken
func moveInto(src, dir string, now time.Time) (string, error) {
	base := filepath.Base(src)
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		dest = filepath.Join(dir, fmt.Sprintf("%s_%s%s", strings.TrimSuffix(base, ext), now.Format("20060102_150405.000000"), ext))
	}
	if err := os.Rename(src, dest); err != nil {
		return "", errors.Wrapf(err, "failed to move %s to %s", src, dir)
	}
	return dest, nil
}

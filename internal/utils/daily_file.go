package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// DailyFile is an append-only writer that switches to a new file
// `<dir>/<prefix>-YYYY-MM-DD.log` when the UTC date changes.
type DailyFile struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewDailyFile(dir, prefix string) (*DailyFile, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create log dir %q: %w", dir, err)
	}

	d := &DailyFile{dir: dir, prefix: prefix, now: time.Now}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotate(d.today()); err != nil {
		return nil, err
	}
	return d, nil
}

// Path of the file currently being written.
func (d *DailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pathFor(d.day)
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if day := d.today(); day != d.day || d.file == nil {
		if err := d.rotate(day); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

func (d *DailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *DailyFile) today() string {
	return d.now().UTC().Format(dayLayout)
}

func (d *DailyFile) pathFor(day string) string {
	return filepath.Join(d.dir, d.prefix+"-"+day+".log")
}

func (d *DailyFile) rotate(day string) error {
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		d.file = nil
	}

	f, err := os.OpenFile(d.pathFor(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	d.file = f
	d.day = day
	return nil
}

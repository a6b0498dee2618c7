package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/asarvarbek/tgshop-backend/internal/config"
	"github.com/asarvarbek/tgshop-backend/internal/domain"
	"github.com/asarvarbek/tgshop-backend/internal/store"
)

// datatool maintains the JSON data files behind the storefront: point-in-time
// backups, restores, removal of invalid entries, and integrity checks.

var slotFiles = []string{"menu.json", "orders.json", "uploads.json"}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		logger.Error("usage: datatool <backup|restore [dir]|clean|check>")
		os.Exit(1)
	}

	cfg := config.Load()
	paths := store.Paths{
		DataDir: cfg.DataDir,
		Menu:    cfg.MenuFile,
		Orders:  cfg.OrdersFile,
		Uploads: cfg.UploadsFile,
	}

	var err error
	switch command := args[0]; command {
	case "backup":
		err = runBackup(paths, logger)
	case "restore":
		dir := ""
		if len(args) > 1 {
			dir = args[1]
		}
		err = runRestore(paths, dir, logger)
	case "clean":
		err = runClean(paths, logger)
	case "check":
		err = runCheck(paths, logger)
	default:
		logger.Error("unknown command", slog.String("command", command))
		os.Exit(1)
	}

	if err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// runBackup copies the three slot files into a fresh timestamped directory
// under backups/.
func runBackup(paths store.Paths, logger *slog.Logger) error {
	timestamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	backupDir := filepath.Join(paths.BackupsDir(), timestamp)

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return err
	}

	for _, file := range slotFiles {
		src := filepath.Join(paths.DataDir, file)
		dst := filepath.Join(backupDir, file)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("backup %s: %w", file, err)
		}
		logger.Info("backed up file", slog.String("file", file))
	}

	logger.Info("backup completed", slog.String("dir", backupDir))
	return nil
}

// runRestore copies slot files back from the given backup directory, or from
// the most recent backup when dir is empty.
func runRestore(paths store.Paths, dir string, logger *slog.Logger) error {
	if dir == "" {
		entries, err := os.ReadDir(paths.BackupsDir())
		if err != nil {
			return err
		}
		var names []string
		for _, entry := range entries {
			if entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
		if len(names) == 0 {
			return fmt.Errorf("no backups found in %s", paths.BackupsDir())
		}
		sort.Strings(names)
		dir = filepath.Join(paths.BackupsDir(), names[len(names)-1])
	}

	for _, file := range slotFiles {
		src := filepath.Join(dir, file)
		dst := filepath.Join(paths.DataDir, file)
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("restore %s: %w", file, err)
		}
		logger.Info("restored file", slog.String("file", file))
	}

	logger.Info("restore completed", slog.String("dir", dir))
	return nil
}

// runClean drops entries that lost required fields, usually after a partial
// write or a hand edit.
func runClean(paths store.Paths, logger *slog.Logger) error {
	st, err := store.Open(paths, logger)
	if err != nil {
		return err
	}

	cleaned := 0

	err = st.Menu.Update(func(items []domain.Product) ([]domain.Product, error) {
		kept := items[:0]
		for _, p := range items {
			if p.ID > 0 && p.Name != "" && p.Price >= 0 {
				kept = append(kept, p)
			} else {
				cleaned++
			}
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	err = st.Orders.Update(func(items []domain.Order) ([]domain.Order, error) {
		kept := items[:0]
		for _, o := range items {
			if o.ID != "" && o.Items != nil && o.Total >= 0 {
				kept = append(kept, o)
			} else {
				cleaned++
			}
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	err = st.Uploads.Update(func(items []domain.Upload) ([]domain.Upload, error) {
		kept := items[:0]
		for _, u := range items {
			if u.ID > 0 && u.URL != "" && u.FileID != "" {
				kept = append(kept, u)
			} else {
				cleaned++
			}
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	logger.Info("clean completed", slog.Int("removed", cleaned))
	return nil
}

// runCheck reports integrity issues without modifying anything.
func runCheck(paths store.Paths, logger *slog.Logger) error {
	st, err := store.Open(paths, logger)
	if err != nil {
		return err
	}

	issues := 0
	report := func(format string, args ...any) {
		issues++
		logger.Warn(fmt.Sprintf(format, args...))
	}

	for i, p := range st.Menu.Load() {
		if p.ID <= 0 {
			report("menu item at index %d has no id", i)
		}
		if p.Name == "" {
			report("menu item %d has no name", p.ID)
		}
		if p.Price < 0 {
			report("menu item %d has invalid price", p.ID)
		}
	}

	for i, o := range st.Orders.Load() {
		if o.ID == "" {
			report("order at index %d has no id", i)
		}
		if len(o.Items) == 0 {
			report("order %s has no items", o.ID)
		}
		if o.Total < 0 {
			report("order %s has invalid total", o.ID)
		}
		if !o.Status.Valid() {
			report("order %s has unknown status %q", o.ID, o.Status)
		}
	}

	for i, u := range st.Uploads.Load() {
		if u.ID <= 0 {
			report("upload at index %d has no id", i)
		}
		if u.URL == "" {
			report("upload %d has no url", u.ID)
		}
		if u.FileID == "" {
			report("upload %d has no file id", u.ID)
		}
	}

	if issues > 0 {
		logger.Warn("check found issues", slog.Int("count", issues))
	} else {
		logger.Info("all data checks passed")
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

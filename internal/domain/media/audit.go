package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type AuditOptions struct {
	PruneRecords bool // delete records whose file is gone
	RemoveStray  bool // delete files no record points at
}

// AuditReport lists inconsistencies between the metadata store and the upload root.
type AuditReport struct {
	Records       int
	Files         int
	MissingFiles  []*Media
	OutsideRoot   []*Media
	StrayFiles    []string
	PrunedRecords int
	RemovedFiles  int
}

func (r *AuditReport) Clean() bool {
	return len(r.MissingFiles) == 0 && len(r.OutsideRoot) == 0 && len(r.StrayFiles) == 0
}

// Auditor finds orphaned records and stray files left behind by partial failures.
type Auditor struct {
	repo Repository
	root Root
	log  *zap.Logger
}

func NewAuditor(repo Repository, root Root, log *zap.Logger) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{repo: repo, root: root, log: log.Named("media_audit")}
}

func (a *Auditor) Run(ctx context.Context, opts AuditOptions) (*AuditReport, error) {
	records, err := a.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load media records: %w", err)
	}

	report := &AuditReport{Records: len(records)}
	known := make(map[string]struct{}, len(records))

	for _, m := range records {
		path := filepath.Clean(m.Path)
		known[path] = struct{}{}

		if !a.root.Contains(path) {
			a.log.Error("media record points outside upload root", zap.String("id", m.ID), zap.String("path", m.Path))
			report.OutsideRoot = append(report.OutsideRoot, m)
			continue
		}

		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		a.log.Warn("orphaned media record: file missing", zap.String("id", m.ID), zap.String("path", m.Path))
		report.MissingFiles = append(report.MissingFiles, m)
		if opts.PruneRecords {
			if err := a.repo.Delete(ctx, m.ID); err != nil && !errors.Is(err, ErrMediaNotFound) {
				return nil, fmt.Errorf("prune record %s: %w", m.ID, err)
			}
			report.PrunedRecords++
		}
	}

	err = filepath.WalkDir(a.root.Dir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		report.Files++
		if _, ok := known[path]; ok {
			return nil
		}

		a.log.Warn("stray file without media record", zap.String("path", path))
		report.StrayFiles = append(report.StrayFiles, path)
		if opts.RemoveStray {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("remove stray file: %w", err)
			}
			report.RemovedFiles++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk upload root: %w", err)
	}

	return report, nil
}

package bedrockdb

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Lapis256/bedrockdb/compression"
)

// TableFailure describes a table file that failed verification.
type TableFailure struct {
	File string
	Err  error
}

// VerifyReport holds the result of VerifyTables.
type VerifyReport struct {
	// Tables is the number of table files checked.
	Tables int
	// Blocks counts the blocks that decoded successfully, by codec id.
	Blocks map[compression.ID]int
	// Failures lists every table that could not be fully verified.
	Failures []TableFailure
}

// OK reports whether every table verified successfully.
func (r *VerifyReport) OK() bool {
	return len(r.Failures) == 0
}

// VerifyTables checks every table file in the database directory dir. Each
// block is checked against its checksum and decoded with the codec in reg
// that its trailer names. A table that fails does not stop the others from
// being checked; the returned error is only non-nil if dir cannot be read.
func VerifyTables(dir string, reg *compression.Registry) (*VerifyReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("verify tables: %w", err)
	}
	r := &VerifyReport{Blocks: make(map[compression.ID]int)}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".ldb" && ext != ".sst") {
			continue
		}
		r.Tables++
		if err := verifyTable(filepath.Join(dir, e.Name()), reg, r.Blocks); err != nil {
			r.Failures = append(r.Failures, TableFailure{File: e.Name(), Err: err})
		}
	}
	slices.SortFunc(r.Failures, func(a, b TableFailure) int {
		return strings.Compare(a.File, b.File)
	})
	return r, nil
}

// verifyTable checks the index and data blocks of a single table file.
func verifyTable(path string, reg *compression.Registry, counts map[compression.ID]int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	meta, index, err := readFooter(data)
	if err != nil {
		return err
	}
	if _, err := readBlock(data, meta, reg, counts); err != nil {
		return fmt.Errorf("metaindex block: %w", err)
	}
	indexBlock, err := readBlock(data, index, reg, counts)
	if err != nil {
		return fmt.Errorf("index block: %w", err)
	}
	handles, err := indexHandles(indexBlock)
	if err != nil {
		return fmt.Errorf("index block: %w", err)
	}
	for _, h := range handles {
		if _, err := readBlock(data, h, reg, counts); err != nil {
			return fmt.Errorf("data block at %d: %w", h.offset, err)
		}
	}
	return nil
}

// Package migrations embeds the PostgreSQL schema migrations and validates
// them at startup. Embedding with go:embed means the migrator and the test
// suite carry the schema with them; there is no external file dependency.
package migrations

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var embeddedMigrations embed.FS

// Migration filename format: 001_migration_name.up.sql or 001_migration_name.down.sql.
var migrationFilenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

type (
	// Set provides access to the embedded migration files with filename,
	// pairing, sequence, and checksum validation.
	Set struct {
		fs        fs.FS
		checksums map[string]string // filename -> checksum for integrity checking
	}

	// Info contains parsed information about one migration file.
	Info struct {
		Sequence  int
		Name      string
		Direction string // "up" or "down"
		Filename  string
	}
)

// NewSet creates a migration set over the given filesystem.
// Pass nil to use the embedded migrations.
func NewSet(filesystem fs.FS) *Set {
	if filesystem == nil {
		filesystem = embeddedMigrations
	}

	return &Set{
		fs:        filesystem,
		checksums: make(map[string]string),
	}
}

// FS returns the filesystem containing the migration files, suitable for the
// golang-migrate iofs source driver.
func (s *Set) FS() fs.FS {
	return s.fs
}

// List returns all migration files that conform to the naming standard, in
// lexicographic order. Files with nonconforming names are excluded so a typo
// cannot silently change the applied schema.
func (s *Set) List() ([]string, error) {
	entries, err := fs.ReadDir(s.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if filepath.Ext(filename) == ".sql" && migrationFilenameRegex.MatchString(filename) {
			files = append(files, filename)
		}
	}

	sort.Strings(files)

	return files, nil
}

// Validate performs full validation of the embedded migration files:
// filename format, up/down pairing, gapless sequence starting at 001, and
// checksum integrity across repeated calls.
func (s *Set) Validate() error {
	files, err := s.List()
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no migration files found")
	}

	for _, file := range files {
		if _, err := s.Content(file); err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
	}

	if err := s.validatePairing(files); err != nil {
		return err
	}

	if err := s.validateSequence(files); err != nil {
		return err
	}

	if len(s.checksums) > 0 {
		if err := s.validateChecksums(files); err != nil {
			return err
		}
	}

	for _, file := range files {
		content, err := s.Content(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		s.checksums[file] = checksum(content)
	}

	return nil
}

// Content returns the raw content of one migration file.
func (s *Set) Content(filename string) ([]byte, error) {
	return fs.ReadFile(s.fs, filename)
}

// MaxVersion returns the highest migration sequence number in the set.
func (s *Set) MaxVersion() int {
	files, err := s.List()
	if err != nil {
		return 0
	}

	maxSequence := 0

	for _, filename := range files {
		if info, err := Parse(filename); err == nil && info.Sequence > maxSequence {
			maxSequence = info.Sequence
		}
	}

	return maxSequence
}

// Parse extracts the components of a migration filename.
func Parse(filename string) (*Info, error) {
	matches := migrationFilenameRegex.FindStringSubmatch(filename)
	if len(matches) != 4 {
		return nil, fmt.Errorf(
			"invalid migration filename format: %s (expected: 001_name.up.sql or 001_name.down.sql)",
			filename,
		)
	}

	sequence, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence number in filename %s: %w", filename, err)
	}

	return &Info{
		Sequence:  sequence,
		Name:      matches[2],
		Direction: matches[3],
		Filename:  filename,
	}, nil
}

// validatePairing ensures every up migration has a matching down migration.
func (s *Set) validatePairing(files []string) error {
	pairs := make(map[string]map[string]bool)

	for _, file := range files {
		info, err := Parse(file)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("%03d_%s", info.Sequence, info.Name)
		if pairs[key] == nil {
			pairs[key] = make(map[string]bool)
		}

		pairs[key][info.Direction] = true
	}

	for key, directions := range pairs {
		if !directions["up"] {
			return fmt.Errorf("orphaned down migration: missing up migration for %s", key)
		}

		if !directions["down"] {
			return fmt.Errorf("orphaned up migration: missing down migration for %s", key)
		}
	}

	return nil
}

// validateSequence ensures the sequence starts at 001 and has no gaps.
func (s *Set) validateSequence(files []string) error {
	sequences := make(map[int]bool)

	for _, file := range files {
		info, err := Parse(file)
		if err != nil {
			return err
		}

		sequences[info.Sequence] = true
	}

	var sequenceNumbers []int
	for seq := range sequences {
		sequenceNumbers = append(sequenceNumbers, seq)
	}

	sort.Ints(sequenceNumbers)

	if len(sequenceNumbers) == 0 {
		return nil
	}

	if sequenceNumbers[0] != 1 {
		return fmt.Errorf("migration sequence should start with 001, but found %03d", sequenceNumbers[0])
	}

	for i := 1; i < len(sequenceNumbers); i++ {
		if sequenceNumbers[i] != sequenceNumbers[i-1]+1 {
			return fmt.Errorf(
				"gap in migration sequence: expected %03d, found %03d",
				sequenceNumbers[i-1]+1, sequenceNumbers[i],
			)
		}
	}

	return nil
}

// validateChecksums verifies the files have not changed since the last Validate.
func (s *Set) validateChecksums(files []string) error {
	for _, file := range files {
		content, err := s.Content(file)
		if err != nil {
			return fmt.Errorf("failed to read file %s for checksum validation: %w", file, err)
		}

		if stored, exists := s.checksums[file]; exists && stored != checksum(content) {
			return fmt.Errorf("checksum mismatch for %s: file has been modified", file)
		}
	}

	return nil
}

func checksum(content []byte) string {
	hash := sha256.Sum256(content)

	return fmt.Sprintf("%x", hash)
}

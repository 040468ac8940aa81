// Package store keeps the ordered collection of generated and edited cells.
package store

import (
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/cellsim/pkg/cell"
)

// Row is a cell together with its position in the store.
type Row struct {
	Index int       `json:"index"`
	Cell  cell.Cell `json:"cell"`
}

// Store is an ordered, mutable sequence of cells. Every mutation bumps the
// version so that views derived from an older state can be detected.
//
// Store is not safe for concurrent use; its owner serializes access.
type Store struct {
	cells   []cell.Cell
	version uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Len returns the number of cells.
func (s *Store) Len() int {
	return len(s.cells)
}

// Version returns the current mutation counter.
func (s *Store) Version() uint64 {
	return s.version
}

// At returns the cell at position i.
func (s *Store) At(i int) (cell.Cell, bool) {
	if i < 0 || i >= len(s.cells) {
		return cell.Cell{}, false
	}
	return s.cells[i], true
}

// Snapshot returns a copy of every cell in order.
func (s *Store) Snapshot() []cell.Cell {
	out := make([]cell.Cell, len(s.cells))
	copy(out, s.cells)
	return out
}

// Rows returns every cell paired with its index.
func (s *Store) Rows() []Row {
	out := make([]Row, len(s.cells))
	for i, c := range s.cells {
		out[i] = Row{Index: i, Cell: c}
	}
	return out
}

// Append adds cells to the end of the store. Appending nothing is a no-op and
// leaves the version unchanged.
func (s *Store) Append(cells ...cell.Cell) {
	if len(cells) == 0 {
		return
	}
	s.cells = append(s.cells, cells...)
	s.version++
}

// Clear empties the store.
func (s *Store) Clear() {
	s.cells = nil
	s.version++
}

// ReplaceRange overwrites the cell at each index with the matching cell. It
// validates everything before writing, so a failed call leaves the store
// untouched.
func (s *Store) ReplaceRange(indices []int, cells []cell.Cell) error {
	if len(indices) != len(cells) {
		return pkgerrors.Wrapf(ErrLengthMismatch, "%d indices, %d cells", len(indices), len(cells))
	}
	if err := s.checkIndices(indices); err != nil {
		return err
	}
	for i, c := range cells {
		if err := c.Validate(); err != nil {
			return pkgerrors.Wrapf(err, "cell for index %d", indices[i])
		}
	}
	if len(indices) == 0 {
		return nil
	}
	for i, idx := range indices {
		s.cells[idx] = cells[i]
	}
	s.version++
	return nil
}

// Remove deletes the cells at the given positions, keeping the relative order
// of the remaining cells.
func (s *Store) Remove(indices []int) error {
	if err := s.checkIndices(indices); err != nil {
		return err
	}
	if len(indices) == 0 {
		return nil
	}
	drop := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		drop[i] = struct{}{}
	}
	kept := s.cells[:0]
	for i, c := range s.cells {
		if _, ok := drop[i]; !ok {
			kept = append(kept, c)
		}
	}
	s.cells = kept
	s.version++
	return nil
}

func (s *Store) checkIndices(indices []int) error {
	seen := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(s.cells) {
			return pkgerrors.Wrapf(ErrIndexOutOfRange, "index %d, store has %d cells", i, len(s.cells))
		}
		if _, ok := seen[i]; ok {
			return pkgerrors.Wrapf(ErrDuplicateIndex, "index %d", i)
		}
		seen[i] = struct{}{}
	}
	return nil
}

// Edit is the result of editing a view in the grid. Rows with an index
// overwrite that position; rows without one are new.
type Edit struct {
	// Version is the store version the view was derived from.
	Version uint64 `json:"version"`
	// ViewIndices are the store positions that were shown.
	ViewIndices []int `json:"viewIndices"`
	// Rows is the edited grid content.
	Rows []EditedRow `json:"rows"`
}

// EditedRow is one row coming back from the grid.
type EditedRow struct {
	Index *int      `json:"index,omitempty"`
	Cell  cell.Cell `json:"cell"`
}

// EditResult summarizes what ApplyEdit changed.
type EditResult struct {
	Replaced int `json:"replaced"`
	Removed  int `json:"removed"`
	Appended int `json:"appended"`
}

// ApplyEdit writes a grid edit back. Shown rows that are missing from the
// edit are removed, indexed rows are overwritten and unindexed rows are
// appended. The whole edit is rejected with ErrStaleView if the store changed
// since the view was derived, or with a validation error if any row is bad;
// in both cases the store is untouched.
func (s *Store) ApplyEdit(e Edit) (EditResult, error) {
	if e.Version != s.version {
		return EditResult{}, pkgerrors.Wrapf(ErrStaleView, "view version %d, store version %d", e.Version, s.version)
	}
	if err := s.checkIndices(e.ViewIndices); err != nil {
		return EditResult{}, pkgerrors.Wrap(err, "view indices")
	}
	shown := make(map[int]struct{}, len(e.ViewIndices))
	for _, i := range e.ViewIndices {
		shown[i] = struct{}{}
	}

	var (
		replaceIdx []int
		replace    []cell.Cell
		appended   []cell.Cell
	)
	kept := make(map[int]struct{}, len(e.Rows))
	for _, r := range e.Rows {
		if err := r.Cell.Validate(); err != nil {
			return EditResult{}, err
		}
		if r.Index == nil {
			appended = append(appended, r.Cell)
			continue
		}
		if _, ok := shown[*r.Index]; !ok {
			return EditResult{}, pkgerrors.Wrapf(ErrNotInView, "index %d", *r.Index)
		}
		if _, ok := kept[*r.Index]; ok {
			return EditResult{}, pkgerrors.Wrapf(ErrDuplicateIndex, "index %d", *r.Index)
		}
		kept[*r.Index] = struct{}{}
		replaceIdx = append(replaceIdx, *r.Index)
		replace = append(replace, r.Cell)
	}

	var removed []int
	for _, i := range e.ViewIndices {
		if _, ok := kept[i]; !ok {
			removed = append(removed, i)
		}
	}
	sort.Ints(removed)

	// Everything is validated; the calls below cannot fail.
	before := s.version
	if err := s.ReplaceRange(replaceIdx, replace); err != nil {
		return EditResult{}, err
	}
	if err := s.Remove(removed); err != nil {
		return EditResult{}, err
	}
	s.Append(appended...)

	res := EditResult{Replaced: len(replaceIdx), Removed: len(removed), Appended: len(appended)}
	if s.version != before {
		// One edit is one mutation from the caller's point of view.
		s.version = before + 1
	}
	return res, nil
}

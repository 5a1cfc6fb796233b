package extract

import "github.com/spherical/bbox-ocr/internal/domain"

// arena holds one result slot per page. Each worker writes only its own
// slot, so no locking is needed; errgroup.Wait publishes the writes.
type arena struct {
	results []domain.PageResult
	done    []bool
}

func newArena(n int) *arena {
	return &arena{
		results: make([]domain.PageResult, n),
		done:    make([]bool, n),
	}
}

// set records the terminal result for page idx. Later writes are ignored.
func (a *arena) set(idx int, r domain.PageResult) {
	if a.done[idx] {
		return
	}
	a.results[idx] = r
	a.done[idx] = true
}

// finish marks every page that never reached a terminal state as failed.
func (a *arena) finish(detail string) []domain.PageResult {
	for i := range a.results {
		if !a.done[i] {
			a.results[i] = domain.PageResult{
				PageIndex:   i,
				Status:      domain.StatusFailed,
				Elements:    []domain.Element{},
				ErrorDetail: detail,
			}
			a.done[i] = true
		}
	}
	return a.results
}

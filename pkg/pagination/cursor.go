// Package pagination tracks page/limit/hasMore state for a paginated feed.
package pagination

// DefaultPageSize is used when a cursor is reset with a non-positive size.
const DefaultPageSize = 20

// Cursor tracks the fetch position of one feed. The zero value is unusable;
// call Reset first. Cursors are plain data and not safe for concurrent use,
// ownership stays with the feed's single writer.
type Cursor struct {
	page       int
	pageSize   int
	totalItems int
	totalPages int
	hasMore    bool
}

// NewCursor returns a cursor positioned at page 1.
func NewCursor(pageSize int) Cursor {
	var c Cursor
	c.Reset(pageSize)
	return c
}

// Reset positions the cursor at page 1 with hasMore true.
func (c *Cursor) Reset(pageSize int) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	c.page = 1
	c.pageSize = pageSize
	c.totalItems = 0
	c.totalPages = 0
	c.hasMore = true
}

// Advance moves to the next page after a successful fetch. The reported total
// item count never shrinks an earlier report.
func (c *Cursor) Advance(reportedTotalPages, reportedTotalItems int) {
	c.totalPages = reportedTotalPages
	if reportedTotalItems > c.totalItems {
		c.totalItems = reportedTotalItems
	}
	c.page++
	c.hasMore = c.page <= reportedTotalPages
}

// Exhaust marks the feed as fully fetched without advancing the page. Used
// when a fetch returns an empty page on a server that reports no totals.
func (c *Cursor) Exhaust() {
	c.hasMore = false
}

// Page returns the next page to request (1-based).
func (c *Cursor) Page() int { return c.page }

// PageSize returns the configured page size.
func (c *Cursor) PageSize() int { return c.pageSize }

// TotalItems returns the highest total item count reported so far.
func (c *Cursor) TotalItems() int { return c.totalItems }

// HasMore reports whether another page should be fetched.
func (c *Cursor) HasMore() bool { return c.hasMore }

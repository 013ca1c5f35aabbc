package synclog

import "github.com/larksync/larksync-console/internal/larkapi"

const DefaultPageSize = 50

// PageSizes are the sizes offered by surfaces.
var PageSizes = []int{20, 50, 100}

// Page is one slice of a filtered list.
type Page struct {
	Items      []larkapi.SyncLogEntry `json:"items"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalPages int                    `json:"total_pages"`
	Total      int                    `json:"total"`
}

// TotalPages is ceil(count/pageSize), never less than 1.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return max(1, (count+pageSize-1)/pageSize)
}

// Paginate slices entries to the 1-based page. A page past the end is empty.
func Paginate(entries []larkapi.SyncLogEntry, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page = max(page, 1)

	p := Page{
		Page:       page,
		PageSize:   pageSize,
		Total:      len(entries),
		TotalPages: TotalPages(len(entries), pageSize),
		Items:      []larkapi.SyncLogEntry{},
	}

	start := (page - 1) * pageSize
	if start >= len(entries) {
		return p
	}
	end := min(start+pageSize, len(entries))
	p.Items = entries[start:end]
	return p
}

// Pager holds the log center's view state. Any change to what is being paged
// puts the view back on page 1.
type Pager struct {
	page     int
	pageSize int
	filter   Filter
}

func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{page: 1, pageSize: pageSize}
}

func (p *Pager) Page() int        { return p.page }
func (p *Pager) PageSize() int    { return p.pageSize }
func (p *Pager) Filter() Filter   { return p.filter }
func (p *Pager) SetPage(page int) { p.page = max(page, 1) }

// SetPageSize changes the page size and resets to page 1.
func (p *Pager) SetPageSize(size int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	p.pageSize = size
	p.page = 1
}

// SetFilter replaces the filter and resets to page 1.
func (p *Pager) SetFilter(f Filter) {
	p.filter = f
	p.page = 1
}

// Next moves forward unless already on the last page of a list of count entries.
func (p *Pager) Next(count int) {
	if p.page < TotalPages(count, p.pageSize) {
		p.page++
	}
}

func (p *Pager) Prev() {
	if p.page > 1 {
		p.page--
	}
}

// View filters entries and returns the current page.
func (p *Pager) View(entries []larkapi.SyncLogEntry) Page {
	return Paginate(p.filter.Apply(entries), p.page, p.pageSize)
}

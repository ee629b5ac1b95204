// FeedsData is a paginated response payload for the feed list.
package dto

type FeedsData struct {
	Feeds       []FeedInfo `json:"feeds"`
	Length      int        `json:"length"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	Limit       int        `json:"pageSize"`
}

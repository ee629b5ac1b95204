// FeedFilter narrows the feed list. Zero values mean "no restriction".
package dto

type FeedFilter struct {
	UserID     int64
	ObjectType string
	Limit      int
	Offset     int
}

package client

import (
	"encoding/json"
	"sync"

	"github.com/xavlink/realtime/models"
	"github.com/xavlink/realtime/ws"
)

// FeedState mirrors the post feed a UI renders. Like counts are absolute
// values from the server, so out-of-order deliveries converge: the last
// event received wins and no local arithmetic is done.
type FeedState struct {
	mu    sync.Mutex
	posts []models.Post
	index map[string]int // post ID to position in posts
}

// NewFeedState builds the feed and wires it to the client's events. The
// returned func unsubscribes everything.
func NewFeedState(c *Client) (*FeedState, func()) {
	f := &FeedState{index: make(map[string]int)}

	subs := []func(){
		c.On(ws.OpNewPost, f.onNewPost),
		c.On(ws.OpPostLiked, f.onLikeCount),
		c.On(ws.OpPostUnliked, f.onLikeCount),
	}
	unsubscribe := func() {
		for _, u := range subs {
			u()
		}
	}
	return f, unsubscribe
}

// Replace swaps in a freshly fetched feed, newest first.
func (f *FeedState) Replace(posts []models.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.posts = make([]models.Post, len(posts))
	copy(f.posts, posts)
	f.index = make(map[string]int, len(posts))
	for i, p := range f.posts {
		f.index[p.ID] = i
	}
}

// Posts returns a copy of the feed, newest first.
func (f *FeedState) Posts() []models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]models.Post, len(f.posts))
	copy(out, f.posts)
	return out
}

// LikesCount returns a post's current like count and whether the post is
// known to the feed.
func (f *FeedState) LikesCount(postID string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.index[postID]
	if !ok {
		return 0, false
	}
	return f.posts[i].LikesCount, true
}

func (f *FeedState) onNewPost(data json.RawMessage) {
	event, err := ws.Decode[ws.NewPostData](data)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// The author's own optimistic insert and the broadcast both land here;
	// the ID check keeps the post single.
	if _, ok := f.index[event.Post.ID]; ok {
		return
	}
	f.posts = append([]models.Post{event.Post}, f.posts...)
	f.index = make(map[string]int, len(f.posts))
	for i, p := range f.posts {
		f.index[p.ID] = i
	}
}

func (f *FeedState) onLikeCount(data json.RawMessage) {
	event, err := ws.Decode[ws.PostLikedData](data)
	if err != nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if i, ok := f.index[event.PostID]; ok {
		f.posts[i].LikesCount = event.LikesCount
	}
}
